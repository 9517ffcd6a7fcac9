package deviceauth

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"go.pilab.hu/deviceauth/client"
)

type MockDeviceCodeStore struct {
	mock.Mock
}

func (m *MockDeviceCodeStore) GetByDeviceCode(ctx context.Context, deviceCode string) (*DeviceCodeRecord, error) {
	args := m.Called(ctx, deviceCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*DeviceCodeRecord), args.Error(1)
}

func (m *MockDeviceCodeStore) GetByUserCode(ctx context.Context, userCode string) (*DeviceCodeRecord, error) {
	args := m.Called(ctx, userCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*DeviceCodeRecord), args.Error(1)
}

func (m *MockDeviceCodeStore) InsertIfAbsent(ctx context.Context, record *DeviceCodeRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockDeviceCodeStore) DeleteExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockClientRegistry struct {
	mock.Mock
}

func (m *MockClientRegistry) GetClient(ctx context.Context, clientID string) (*client.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*client.Client), args.Error(1)
}

// mapStore is a minimal DeviceCodeStore keeping every record it accepts.
type mapStore struct {
	mu       sync.Mutex
	byDevice map[string]*DeviceCodeRecord
	byUser   map[string]*DeviceCodeRecord
}

func newMapStore() *mapStore {
	return &mapStore{
		byDevice: map[string]*DeviceCodeRecord{},
		byUser:   map[string]*DeviceCodeRecord{},
	}
}

func (s *mapStore) GetByDeviceCode(_ context.Context, deviceCode string) (*DeviceCodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.byDevice[deviceCode]; ok {
		return r, nil
	}

	return nil, ErrRecordNotFound
}

func (s *mapStore) GetByUserCode(_ context.Context, userCode string) (*DeviceCodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.byUser[userCode]; ok {
		return r, nil
	}

	return nil, ErrRecordNotFound
}

func (s *mapStore) InsertIfAbsent(_ context.Context, r *DeviceCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byDevice[r.DeviceCode]; ok {
		return ErrCodeCollision
	}

	if _, ok := s.byUser[r.UserCode]; ok {
		return ErrCodeCollision
	}

	s.byDevice[r.DeviceCode] = r
	s.byUser[r.UserCode] = r

	return nil
}

func (s *mapStore) DeleteExpired(context.Context) (int, error) { return 0, nil }

func (s *mapStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.byDevice)
}

// sequenceGenerator hands out fixed codes in order, repeating the last pair.
type sequenceGenerator struct {
	mu          sync.Mutex
	deviceCodes []string
	userCodes   []string
	calls       int
}

func (g *sequenceGenerator) DeviceCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++

	return g.deviceCodes[min(g.calls, len(g.deviceCodes))-1], nil
}

func (g *sequenceGenerator) UserCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.userCodes[min(g.calls, len(g.userCodes))-1], nil
}

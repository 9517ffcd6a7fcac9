package deviceauth

// PrincipalKind tags the variant held by a Principal.
type PrincipalKind int

const (
	// PrincipalNone is the zero value: nobody authenticated.
	PrincipalNone PrincipalKind = iota
	// PrincipalClient is a client authenticated with its own credentials.
	PrincipalClient
	// PrincipalClientUser is a combined credential where a user acts through a client.
	// The client id it carries is distinct from the principal name.
	PrincipalClientUser
)

func (k PrincipalKind) String() string {
	switch k {
	case PrincipalClient:
		return "client"
	case PrincipalClientUser:
		return "client_user"
	default:
		return "none"
	}
}

// Principal is the authenticated caller of the device authorization endpoint.
// Construct it with NewClientPrincipal or NewClientUserPrincipal.
type Principal struct {
	kind     PrincipalKind
	name     string
	clientID string
}

// NewClientPrincipal returns a principal for a client authenticated as itself.
func NewClientPrincipal(clientID string) Principal {
	if clientID == "" {
		return Principal{}
	}

	return Principal{kind: PrincipalClient, name: clientID, clientID: clientID}
}

// NewClientUserPrincipal returns a principal for a user acting through clientID.
func NewClientUserPrincipal(name, clientID string) Principal {
	if name == "" {
		return Principal{}
	}

	return Principal{kind: PrincipalClientUser, name: name, clientID: clientID}
}

// Kind returns the variant tag.
func (p Principal) Kind() PrincipalKind { return p.kind }

// Name is the principal name. For a plain client it is the client id.
func (p Principal) Name() string { return p.name }

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.kind != PrincipalNone && p.name != ""
}

// EffectiveClientID is the client id a request made by this principal must use.
func (p Principal) EffectiveClientID() string {
	switch p.kind {
	case PrincipalClient:
		return p.name
	case PrincipalClientUser:
		return p.clientID
	default:
		return ""
	}
}

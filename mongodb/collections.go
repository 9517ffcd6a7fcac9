package mongodb

const (
	ClientsCollection     = "oauth_clients"         // registered OAuth clients
	DeviceCodesCollection = "device_authorizations" // device authorization codes (RFC 8628)
)

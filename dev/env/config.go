package devenv

// PortalTestConfig is read from dev/.state/portal_test.json5 by the tests
// that talk to a real portal.
type PortalTestConfig struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

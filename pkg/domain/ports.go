package domain

// PortConfig holds the resolved ports from config.json.
type PortConfig struct {
	BackendAPI int
	C2Default  int
	Frontend   int
}

package telegram

// Config captures Telegram gateway behavior. The wiring layer maps the
// process configuration onto it.
type Config struct {
	AdminIDs       []int64
	RateLimitRPS   float64 // per-user inbound limit; <= 0 disables limiting
	RateLimitBurst int
	DedupCacheSize int
}

func (c Config) isAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

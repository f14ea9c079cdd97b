package bus

// New returns a RedisBus connected to redisURL, or a MemBus if redisURL is
// empty — the same provider-selection shape the vector store and embedding
// packages use for their own factories.
func New(redisURL string) (Bus, error) {
	if redisURL == "" {
		return NewMemBus(), nil
	}
	return NewRedisBus(redisURL)
}

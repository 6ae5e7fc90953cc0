package generator

// Config drives the synthetic data generator.
type Config struct {
	NumPeople         int
	NumRelationships  int
	UntypedChance     float64
	SecondLabelChance float64
	// UUIDs switches node IDs from sequential person-NNNNN identifiers to
	// random UUIDs.
	UUIDs bool
	Seed  int64
}

// DefaultConfig returns baseline settings for a small but connected graph.
func DefaultConfig() Config {
	return Config{
		NumPeople:         1000,
		NumRelationships:  5000,
		UntypedChance:     0.1,
		SecondLabelChance: 0.2,
		Seed:              42,
	}
}

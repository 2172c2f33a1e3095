package action

// Vocabulary holds the command-name lists used to classify request paths.
// Two write/read pairs exist: the strict pair treats mapping and alias
// changes as writes, the lax pair lets them through as reads for sites
// that let dashboards manage their own index metadata.
type Vocabulary struct {
	Admin       []string
	WriteStrict []string
	ReadStrict  []string
	WriteLax    []string
	ReadLax     []string
}

// DefaultVocabulary returns the built-in command names of the document
// store's REST API.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Admin: []string{
			"_cluster", "_settings", "_close", "_open", "_template",
			"_status", "_stats", "_segments", "_cache", "_gateway",
			"_optimize", "_flush", "_warmer", "_refresh", "_shutdown",
		},
		WriteStrict: []string{
			"_create", "_update", "_bulk", "_percolator", "_mapping",
			"_aliases", "_analyze",
		},
		ReadStrict: []string{
			"_search", "_msearch", "_mlt", "_explain", "_validate",
			"_count", "_suggest", "_percolate", "_nodes",
		},
		WriteLax: []string{
			"_create", "_update", "_bulk",
		},
		ReadLax: []string{
			"_search", "_msearch", "_mlt", "_explain", "_validate",
			"_count", "_suggest", "_percolate", "_nodes", "_percolator",
			"_mapping", "_aliases", "_analyze",
		},
	}
}

func (v *Vocabulary) write(strict bool) []string {
	if strict {
		return v.WriteStrict
	}
	return v.WriteLax
}

func (v *Vocabulary) read(strict bool) []string {
	if strict {
		return v.ReadStrict
	}
	return v.ReadLax
}

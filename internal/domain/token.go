package domain

// Token is an opaque identifier assigned by the engine's tokenizer.
// Sequences of tokens are ordered and position-significant.
type Token int32

// Reconciliation describes the minimal work needed to bring the engine's
// resident sequence in line with a freshly tokenized prompt.
type Reconciliation struct {
	Keep   int     // resident prefix length that stays cached
	Suffix []Token // prompt tokens to ingest starting at position Keep
	Fresh  int     // prompt tokens that were not resident before
}

// ReconcilePrompt diffs prompt against the resident sequence. The longest
// common prefix stays cached. When the prompt is a full prefix-equal match
// the final token is re-ingested anyway: a cached decode does not retain the
// output state sampling needs.
func ReconcilePrompt(resident, prompt []Token) Reconciliation {
	match := commonPrefixLen(resident, prompt)

	keep := match
	if keep == len(prompt) && keep > 0 {
		keep--
	}

	return Reconciliation{
		Keep:   keep,
		Suffix: prompt[keep:],
		Fresh:  len(prompt) - match,
	}
}

func commonPrefixLen(a, b []Token) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

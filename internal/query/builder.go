// Package query composes provider query strings from search configurations.
package query

import (
	"strings"

	"github.com/ymori/newsdispatch/internal/digest"
)

// Builder turns a SearchConfig into a ProviderQuery. Building is pure: the
// output depends only on the config and the injected clock.
type Builder struct {
	clock digest.Clock
}

// NewBuilder constructs a Builder.
func NewBuilder(clock digest.Clock) *Builder {
	return &Builder{clock: clock}
}

// Build composes the provider query for the config's source kind.
//
// All applicable structured keyword sets and the free-text OR keywords are
// joined with OR; refinement keywords become mandatory AND terms, with a
// leading '-' marking a NOT term. The lookback window becomes an inline
// "after:" token for Google News and a NotBefore bound for the index APIs.
func (b *Builder) Build(cfg digest.SearchConfig) (digest.ProviderQuery, error) {
	if !cfg.Source.Valid() {
		return digest.ProviderQuery{}, &digest.ConfigError{
			ConfigID: cfg.ID,
			Reason:   "unknown source kind " + string(cfg.Source),
		}
	}

	orTerms := orTermsFor(cfg)
	if len(orTerms) == 0 && len(cfg.RefineKeywords) == 0 {
		return digest.ProviderQuery{}, &digest.ConfigError{
			ConfigID: cfg.ID,
			Reason:   "no keywords and no free-text terms",
		}
	}

	var sb strings.Builder
	switch {
	case len(orTerms) == 1:
		sb.WriteString(orTerms[0])
	case len(orTerms) > 1:
		sb.WriteString("(")
		sb.WriteString(strings.Join(orTerms, " OR "))
		sb.WriteString(")")
	}

	first := sb.Len() == 0
	for _, kw := range cfg.RefineKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if negated, term := splitNegation(kw); negated {
			if first {
				// A query cannot start with an exclusion alone.
				continue
			}
			sb.WriteString(negationToken(cfg.Source, quoteTerm(term)))
			continue
		}
		if !first {
			sb.WriteString(" AND ")
		}
		sb.WriteString(quoteTerm(kw))
		first = false
	}

	q := digest.ProviderQuery{Source: cfg.Source, Text: sb.String(), Country: cfg.Country}
	if q.Text == "" {
		return digest.ProviderQuery{}, &digest.ConfigError{
			ConfigID: cfg.ID,
			Reason:   "query reduced to nothing after refinement",
		}
	}

	if cfg.LookbackDays > 0 {
		q.NotBefore = b.clock.Now().AddDate(0, 0, -cfg.LookbackDays)
		if cfg.Source == digest.SourceGoogleNews {
			q.Text += " after:" + q.NotBefore.Format("2006-01-02")
		}
	}
	return q, nil
}

// orTermsFor collects the structured keyword sets applicable to the source
// kind plus the free-text OR keywords. Category keywords describe the news
// topic taxonomy and apply to Google News only; universal keywords apply
// everywhere; current (trending) terms apply to Google News and arXiv;
// related research terms apply to CiNii.
func orTermsFor(cfg digest.SearchConfig) []string {
	var sets [][]string
	switch cfg.Source {
	case digest.SourceGoogleNews:
		sets = [][]string{cfg.CategoryKeywords, cfg.UniversalKeywords, cfg.CurrentKeywords}
	case digest.SourceCiNii:
		sets = [][]string{cfg.UniversalKeywords, cfg.RelatedKeywords}
	case digest.SourceArxiv:
		sets = [][]string{cfg.UniversalKeywords, cfg.CurrentKeywords}
	}

	var terms []string
	for _, set := range sets {
		for _, kw := range set {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			terms = append(terms, quoteTerm(kw))
		}
	}
	for _, kw := range cfg.OrKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		// Free-text OR keywords may carry their own operators; wrap them
		// instead of quoting so the expression survives.
		if strings.ContainsAny(kw, " ") && !strings.HasPrefix(kw, "(") {
			kw = "(" + kw + ")"
		}
		terms = append(terms, kw)
	}
	return terms
}

func splitNegation(kw string) (bool, string) {
	if t, ok := strings.CutPrefix(kw, "-"); ok {
		return true, t
	}
	if t, ok := strings.CutPrefix(kw, "NOT "); ok {
		return true, strings.TrimSpace(t)
	}
	return false, kw
}

func negationToken(kind digest.SourceKind, term string) string {
	if kind == digest.SourceGoogleNews {
		return " -" + term
	}
	return " NOT " + term
}

func quoteTerm(kw string) string {
	if strings.Contains(kw, " ") && !strings.HasPrefix(kw, "\"") {
		return "\"" + kw + "\""
	}
	return kw
}

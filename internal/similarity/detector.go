package similarity

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/audit"
	"github.com/seolens/siteaudit/internal/hash/sha256"
)

// Config tunes duplicate detection.
type Config struct {
	// MinWords excludes pages with too little content to compare.
	MinWords int

	// ShingleSize is the shingle width in words.
	ShingleSize int

	// NumHashes is the MinHash signature length.
	NumHashes int

	// CandidateThreshold is the signature similarity below which a
	// pair is not worth exact verification.
	CandidateThreshold float64

	// NearThreshold is the verified Jaccard similarity at which a
	// pair counts as near-duplicate.
	NearThreshold float64

	// MinLengthRatio excludes pairs whose word counts differ too much
	// to plausibly be duplicates.
	MinLengthRatio float64
}

// Group is a set of pages sharing the same or nearly the same content.
type Group struct {
	// URLs are the group members, sorted.
	URLs []string

	// Exact is true when every member has byte-identical content text.
	Exact bool

	// Similarity is the lowest verified pairwise similarity in the
	// group; 1.0 for exact groups.
	Similarity float64
}

// Detector clusters crawled pages into duplicate groups.
type Detector struct {
	cfg    Config
	hasher *sha256.Hasher
	seeds  []uint64
	logger *zap.Logger
}

// NewDetector creates a Detector. Zero config fields get defaults.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if cfg.MinWords <= 0 {
		cfg.MinWords = 80
	}
	if cfg.ShingleSize <= 0 {
		cfg.ShingleSize = 3
	}
	if cfg.NumHashes <= 0 {
		cfg.NumHashes = 50
	}
	if cfg.CandidateThreshold <= 0 {
		cfg.CandidateThreshold = 0.85
	}
	if cfg.NearThreshold <= 0 {
		cfg.NearThreshold = 0.90
	}
	if cfg.MinLengthRatio <= 0 {
		cfg.MinLengthRatio = 0.70
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		cfg:    cfg,
		hasher: sha256.New(),
		seeds:  hashSeeds(cfg.NumHashes),
		logger: logger.Named("similarity"),
	}
}

// candidate is one page prepared for comparison.
type candidate struct {
	url      string
	words    int
	digest   string
	shingles map[string]struct{}
	sig      Signature
}

// Detect clusters pages into duplicate groups. Pages that failed to
// crawl, declare each other canonical, or carry too little text are
// left out. Exact and near groups are separate categories: a pair
// belongs to at most one.
func (d *Detector) Detect(pages map[string]*audit.PageRecord) []Group {
	cands := d.prepare(pages)
	if len(cands) < 2 {
		return nil
	}

	exact := newUnionFind(len(cands))
	byDigest := make(map[string][]int)
	for i, c := range cands {
		byDigest[c.digest] = append(byDigest[c.digest], i)
	}
	for _, members := range byDigest {
		for k := 1; k < len(members); k++ {
			a, b := members[0], members[k]
			if d.canonicalLinked(pages, cands[a].url, cands[b].url) {
				continue
			}
			exact.union(a, b)
		}
	}

	near := newUnionFind(len(cands))
	pairSim := make(map[[2]int]float64)
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			if cands[i].digest == cands[j].digest {
				continue
			}
			if d.canonicalLinked(pages, cands[i].url, cands[j].url) {
				continue
			}
			if !d.lengthComparable(cands[i].words, cands[j].words) {
				continue
			}
			if cands[i].sig.Similarity(cands[j].sig) < d.cfg.CandidateThreshold {
				continue
			}
			sim := Jaccard(cands[i].shingles, cands[j].shingles)
			if sim < d.cfg.NearThreshold {
				continue
			}
			near.union(i, j)
			pairSim[pairKey(i, j)] = sim
		}
	}

	groups := d.collect(cands, exact, true, nil)
	groups = append(groups, d.collect(cands, near, false, pairSim)...)
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].URLs[0] < groups[j].URLs[0]
	})
	return groups
}

func (d *Detector) prepare(pages map[string]*audit.PageRecord) []candidate {
	urls := make([]string, 0, len(pages))
	for u := range pages {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	var cands []candidate
	for _, u := range urls {
		rec := pages[u]
		if rec.StatusCode != 200 || rec.Doc == nil {
			continue
		}
		text := MainText(rec.Doc)
		words := len(strings.Fields(text))
		if words < d.cfg.MinWords {
			continue
		}
		shingles := Shingles(text, d.cfg.ShingleSize)
		cands = append(cands, candidate{
			url:      u,
			words:    words,
			digest:   d.hasher.Hash([]byte(text)),
			shingles: shingles,
			sig:      MinHash(shingles, d.seeds),
		})
	}
	d.logger.Debug("prepared duplicate candidates",
		zap.Int("pages", len(pages)),
		zap.Int("candidates", len(cands)))
	return cands
}

func (d *Detector) lengthComparable(a, b int) bool {
	if a > b {
		a, b = b, a
	}
	if b == 0 {
		return false
	}
	return float64(a)/float64(b) >= d.cfg.MinLengthRatio
}

// canonicalLinked reports whether either page declares the other as
// its canonical target. Such pairs are intentional duplicates.
func (d *Detector) canonicalLinked(pages map[string]*audit.PageRecord, a, b string) bool {
	if ra := pages[a]; ra != nil && ra.Canonical == b {
		return true
	}
	if rb := pages[b]; rb != nil && rb.Canonical == a {
		return true
	}
	return false
}

// collect turns one category's union-find components into groups,
// discarding singletons.
func (d *Detector) collect(cands []candidate, uf *unionFind, exact bool, pairSim map[[2]int]float64) []Group {
	members := make(map[int][]int)
	for i := range cands {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	var groups []Group
	for _, idx := range members {
		if len(idx) < 2 {
			continue
		}
		g := Group{Exact: exact, Similarity: 1}
		for _, i := range idx {
			g.URLs = append(g.URLs, cands[i].url)
		}
		sort.Strings(g.URLs)

		// A near group's similarity is its weakest verified pair.
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				if sim, ok := pairSim[pairKey(idx[a], idx[b])]; ok && sim < g.Similarity {
					g.Similarity = sim
				}
			}
		}
		groups = append(groups, g)
	}
	return groups
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

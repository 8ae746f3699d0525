// Package similarity finds duplicate and near-duplicate page content.
// Pages are reduced to boilerplate-free main text, fingerprinted with
// word shingles and MinHash signatures, and clustered with a union-find
// over verified near-duplicate pairs. Canonical relationships between
// pages suppress pairs the site already declares as duplicates.
package similarity

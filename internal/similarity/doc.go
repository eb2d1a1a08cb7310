// Package similarity provides attribute name normalization and Levenshtein
// based similarity scoring shared by the mapping engine and the ingestion
// normalizer.
package similarity

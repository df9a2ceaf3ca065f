// Package textutil extracts salient terms from transcript text.
//
// Tokenization lowercases text, splits on non-letter/non-digit runs, and
// filters tokens shorter than 3 characters. Keyword ranking is frequency
// based with a small English stopword list; for other languages the
// stopword filter is a no-op and raw frequency still produces usable terms.
package textutil

/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package command

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// token is one `:name` placeholder; start points at the colon, end is exclusive.
type token struct {
	start int
	end   int
	name  string
}

type scanEntry struct {
	text   string
	tokens []token
}

const scanCacheSize = 1024

var scanCache = mustScanCache()

func mustScanCache() *lru.Cache[uint64, scanEntry] {
	c, err := lru.New[uint64, scanEntry](scanCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

// scanTokens returns the placeholders of text. The returned slice is shared
// with the cache and must not be modified.
func scanTokens(text string) []token {
	key := xxhash.Sum64String(text)
	if e, ok := scanCache.Get(key); ok && e.text == text {
		return e.tokens
	}
	toks := scan(text)
	scanCache.Add(key, scanEntry{text: text, tokens: toks})
	return toks
}

// scan walks text once, skipping quoted literals, quoted identifiers,
// comments and `::` casts.
func scan(text string) []token {
	var toks []token
	n := len(text)
	for i := 0; i < n; i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(text, i, c)
		case c == '-' && i+1 < n && text[i+1] == '-':
			for i < n && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return toks
			}
			i += end + 3
		case c == ':':
			if i+1 < n && text[i+1] == ':' {
				i++
				continue
			}
			j := i + 1
			if j >= n || !isIdentStart(text[j]) {
				continue
			}
			for j < n && isIdentPart(text[j]) {
				j++
			}
			toks = append(toks, token{start: i, end: j, name: text[i+1 : j]})
			i = j - 1
		}
	}
	return toks
}

// skipQuoted returns the index of the closing quote. A doubled quote is an
// escaped quote and stays inside the literal.
func skipQuoted(text string, i int, q byte) int {
	for j := i + 1; j < len(text); j++ {
		if text[j] != q {
			continue
		}
		if j+1 < len(text) && text[j+1] == q {
			j++
			continue
		}
		return j
	}
	return len(text)
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

// rewriteTokens rebuilds text, replacing every placeholder for which fn
// returns ok with the returned text. Other placeholders are kept verbatim.
func rewriteTokens(text string, fn func(name string) (string, bool)) string {
	toks := scanTokens(text)
	if len(toks) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, t := range toks {
		repl, ok := fn(t.name)
		if !ok {
			continue
		}
		b.WriteString(text[last:t.start])
		b.WriteString(repl)
		last = t.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// stripLiterals empties quoted literals and blanks out comments so that
// text checks only see SQL structure. A literal keeps its quotes, so
// `'x'::date` stays distinct from `=:`.
func stripLiterals(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	n := len(text)
	for i := 0; i < n; i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(text, i, c)
			b.WriteByte(c)
			b.WriteByte(c)
		case c == '-' && i+1 < n && text[i+1] == '-':
			for i < n && text[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < n && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

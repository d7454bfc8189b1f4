package domain

import "strings"

// Whitelist é o conjunto (sem ordem relevante) de padrões de path que dispensam
// autenticação. Carregada uma vez no startup; somente leitura depois disso.
//
// Três formas de padrão:
//   - exato:       "/health"          casa apenas "/health"
//   - "/prefix/*"  casa exatamente um segmento adicional
//   - "/prefix/**" casa qualquer profundidade
type Whitelist []WhitelistRule

type WhitelistRule struct {
	pattern string
}

// ParseWhitelist normaliza a lista de padrões (trim, descarta vazios).
func ParseWhitelist(patterns []string) Whitelist {
	wl := make(Whitelist, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		wl = append(wl, WhitelistRule{pattern: p})
	}
	return wl
}

// Match devolve true se qualquer regra casar com o path.
// Qualquer match encerra a busca (conjunto sem ordem).
func (wl Whitelist) Match(path string) bool {
	for _, r := range wl {
		if r.match(path) {
			return true
		}
	}
	return false
}

func (r WhitelistRule) match(path string) bool {
	p := r.pattern
	switch {
	case strings.HasSuffix(p, "/**"):
		prefix := p[:len(p)-2] // mantém a barra: "/api/auth/**" -> "/api/auth/"
		return strings.HasPrefix(path, prefix)
	case strings.HasSuffix(p, "/*"):
		prefix := p[:len(p)-1]
		if !strings.HasPrefix(path, prefix) {
			return false
		}
		rest := path[len(prefix):]
		return rest != "" && !strings.Contains(rest, "/")
	default:
		return path == p
	}
}

// pkg/nginx/blocks.go

package nginx

import (
	"fmt"
	"strings"

	"github.com/rdock-dev/rdockctl/pkg/urlpath"
)

// SiteSpec describes one rdock deployment as nginx sees it.
type SiteSpec struct {
	Domain       string
	BasePath     string // normalized: empty or "/prefix"
	TerminalPort int
	EditorPort   int
	SkipEditor   bool
	AuthRealm    string
	HtpasswdPath string
}

// LocationBlock is one reverse-proxy route. MatchPath values across all
// blocks for one domain are pairwise distinct after normalization.
type LocationBlock struct {
	MatchPath   string
	Upstream    string
	Upgradeable bool
}

// SynthesizeLocations builds the location blocks for a deployment: terminal
// always, editor unless skipped. Pure and deterministic.
func SynthesizeLocations(spec SiteSpec) []LocationBlock {
	blocks := []LocationBlock{
		{
			MatchPath:   urlpath.TerminalLocation(spec.BasePath),
			Upstream:    fmt.Sprintf("http://127.0.0.1:%d/", spec.TerminalPort),
			Upgradeable: true,
		},
	}
	if !spec.SkipEditor {
		blocks = append(blocks, LocationBlock{
			MatchPath:   urlpath.EditorLocation(spec.BasePath),
			Upstream:    fmt.Sprintf("http://127.0.0.1:%d/", spec.EditorPort),
			Upgradeable: true,
		})
	}
	return blocks
}

// Render emits the nginx location block. Upgrade/Connection pass-through is
// the load-bearing part: without it WebSocket sessions die silently and the
// terminal UI just never connects.
func (b LocationBlock) Render(indent string) string {
	var sb strings.Builder
	line := func(s string) {
		sb.WriteString(indent)
		sb.WriteString(s)
		sb.WriteString("\n")
	}

	line(fmt.Sprintf("location %s {", b.MatchPath))
	line(fmt.Sprintf("    proxy_pass %s;", b.Upstream))
	line("    proxy_http_version 1.1;")
	if b.Upgradeable {
		line("    proxy_set_header Upgrade $http_upgrade;")
		line(`    proxy_set_header Connection "upgrade";`)
	}
	line("    proxy_set_header Host $host;")
	line("    proxy_set_header X-Real-IP $remote_addr;")
	line("    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;")
	line("    proxy_set_header X-Forwarded-Proto $scheme;")
	// Terminal and editor sessions are long-lived; default 60s read
	// timeouts would reap idle shells.
	line("    proxy_read_timeout 86400s;")
	line("    proxy_send_timeout 86400s;")
	line("    proxy_connect_timeout 75s;")
	line("}")
	return sb.String()
}

// RenderServerConfig emits a complete HTTP-only server block for a fresh
// deployment. TLS is added later by certbot, which rewrites this file.
func RenderServerConfig(spec SiteSpec, blocks []LocationBlock) string {
	var sb strings.Builder
	sb.WriteString(ownedHeader())
	sb.WriteString("server {\n")
	sb.WriteString("    listen 80;\n")
	sb.WriteString("    listen [::]:80;\n")
	sb.WriteString(fmt.Sprintf("    server_name %s;\n", spec.Domain))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("    auth_basic \"%s\";\n", spec.AuthRealm))
	sb.WriteString(fmt.Sprintf("    auth_basic_user_file %s;\n", spec.HtpasswdPath))
	sb.WriteString("\n")
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(b.Render("    "))
	}
	sb.WriteString("}\n")
	return sb.String()
}

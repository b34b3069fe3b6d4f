package surface

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Dumper captures page HTML and a screenshot for offline triage. Failures
// are logged and swallowed.
type Dumper struct {
	Dir    string
	Logger *zap.Logger
}

// NewDumper creates a dumper writing into dir.
func NewDumper(dir string, logger *zap.Logger) *Dumper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dumper{Dir: dir, Logger: logger}
}

// Dump writes <name>.html and <name>.png and returns the HTML path, or ""
// when nothing was written.
func (d *Dumper) Dump(ctx context.Context, p Page, name string) string {
	if d == nil || p == nil {
		return ""
	}

	if d.Dir != "" {
		if err := os.MkdirAll(d.Dir, 0o755); err != nil {
			d.Logger.Warn("creating diagnostics directory", zap.String("dir", d.Dir), zap.Error(err))
			return ""
		}
	}

	htmlPath := filepath.Join(d.Dir, name+".html")
	written := ""

	if html, err := p.Content(ctx); err != nil {
		d.Logger.Warn("reading page content for dump", zap.String("name", name), zap.Error(err))
	} else if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		d.Logger.Warn("writing page dump", zap.String("path", htmlPath), zap.Error(err))
	} else {
		written = htmlPath
	}

	pngPath := filepath.Join(d.Dir, name+".png")
	if shot, err := p.Screenshot(ctx); err != nil {
		d.Logger.Debug("taking screenshot for dump", zap.String("name", name), zap.Error(err))
	} else if err := os.WriteFile(pngPath, shot, 0o644); err != nil {
		d.Logger.Warn("writing screenshot", zap.String("path", pngPath), zap.Error(err))
	}

	if written != "" {
		d.Logger.Info("saved page dump", zap.String("path", written))
	}

	return written
}

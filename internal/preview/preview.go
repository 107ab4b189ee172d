package preview

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/escpos"
)

// PaperWidthPx is the printable width of 80mm paper at 203 dpi.
const PaperWidthPx = 576

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"classes": func(l escpos.Line) string {
		c := "line"
		switch l.Align {
		case escpos.AlignCenter:
			c += " center"
		case escpos.AlignRight:
			c += " right"
		}
		switch l.Size {
		case escpos.SizeDouble:
			c += " double"
		case escpos.SizeDoubleHeight:
			c += " tall"
		}
		if l.Bold {
			c += " bold"
		}
		return c
	},
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { margin: 0; background: #fff; }
.paper { width: {{.Width}}px; padding: 16px 0; font-family: "DejaVu Sans Mono", monospace; font-size: 17px; }
.line { white-space: pre; min-height: 1.2em; line-height: 1.2em; }
.center { text-align: center; }
.right { text-align: right; }
.bold { font-weight: bold; }
.line span { display: inline-block; transform-origin: top center; }
.tall, .double { min-height: 2.4em; line-height: 2.4em; }
.tall span { transform: scale(1, 2); }
.double span { transform: scale(2, 2); }
</style></head>
<body><div class="paper">
{{- range .Lines}}
<div class="{{classes .}}"><span>{{.Text}}</span></div>
{{- end}}
</div></body></html>`))

// HTML lays out a receipt stream as it would appear on paper.
func HTML(stream []byte) (string, error) {
	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, struct {
		Width int
		Lines []escpos.Line
	}{PaperWidthPx, escpos.Decode(stream)})
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// Renderer screenshots receipt previews with headless Chrome.
type Renderer struct {
	ChromePath string
	Timeout    time.Duration
}

func NewRenderer(chromePath string) *Renderer {
	return &Renderer{ChromePath: chromePath, Timeout: 20 * time.Second}
}

// PNG renders stream to a PNG image.
func (r *Renderer) PNG(ctx context.Context, stream []byte) ([]byte, error) {
	html, err := HTML(stream)
	if err != nil {
		return nil, err
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	if r.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.ChromePath))
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var pngBytes []byte
	err = chromedp.Run(cdpCtx,
		emulation.SetDeviceMetricsOverride(PaperWidthPx, 200, 1, false),

		// Load HTML directly using data URL
		chromedp.Navigate("data:text/html,"+urlEncode(html)),
		chromedp.WaitReady("body", chromedp.ByQuery),

		// Capture full-page PNG screenshot
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithCaptureBeyondViewport(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pngBytes = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed generating image: %w", err)
	}
	return pngBytes, nil
}

// Helper for encoding HTML into a data URL
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

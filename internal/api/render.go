package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/btc-node-dashboard/internal/blockstats"
	"github.com/btc-node-dashboard/internal/config"
	"github.com/btc-node-dashboard/internal/peers"
	"github.com/btc-node-dashboard/internal/viewstate"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	plotWidth  = 720
	plotHeight = 240
)

type pages struct {
	tmpl *template.Template
}

func loadPages() (*pages, error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &pages{tmpl: tmpl}, nil
}

type dashboardPage struct {
	Block template.HTML
	Peers template.HTML
}

// dashboard renders both views independently and hands the fragments to the
// page layout.
func (p *pages) dashboard(bs viewstate.State[blockstats.View], ps viewstate.State[peers.Table], page, pageSize int) (dashboardPage, error) {
	var block, peerView bytes.Buffer

	if err := viewstate.Render[blockstats.View](&block, bs, blockRenderer{tmpl: p.tmpl}); err != nil {
		return dashboardPage{}, fmt.Errorf("block view: %w", err)
	}
	pr := peerRenderer{tmpl: p.tmpl, page: page, pageSize: pageSize}
	if err := viewstate.Render[peers.Table](&peerView, ps, pr); err != nil {
		return dashboardPage{}, fmt.Errorf("peer view: %w", err)
	}

	// Both fragments come out of html/template and are already escaped
	return dashboardPage{
		Block: template.HTML(block.String()),
		Peers: template.HTML(peerView.String()),
	}, nil
}

type blockRenderer struct {
	tmpl *template.Template
}

func (r blockRenderer) RenderLoading(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "spinner", "Loading block data...")
}

func (r blockRenderer) RenderError(w io.Writer, message string) error {
	return r.tmpl.ExecuteTemplate(w, "banner", blockErrorPrefix+message)
}

type blockPage struct {
	blockstats.View
	Plot plot
}

func (r blockRenderer) RenderReady(w io.Writer, v blockstats.View) error {
	return r.tmpl.ExecuteTemplate(w, "block_view", blockPage{View: v, Plot: newPlot(v.Chart)})
}

type plotPoint struct {
	X, Y  float64
	Label string
	Count string
}

// plot is the propagation chart laid out as SVG coordinates
type plot struct {
	Width    int
	Height   int
	ViewBox  string
	Polyline string
	Points   []plotPoint
	YMax     string
	XFirst   string
	XLast    string
}

func newPlot(c blockstats.Chart) plot {
	p := plot{
		Width:   plotWidth,
		Height:  plotHeight,
		ViewBox: fmt.Sprintf("-48 -12 %d %d", plotWidth+72, plotHeight+36),
	}
	n := len(c.Points)
	if n == 0 {
		return p
	}

	// x follows event time so uneven gaps between blocks stay visible
	first, last := c.Points[0].Time, c.Points[0].Time
	for _, pt := range c.Points[1:] {
		if pt.Time.Before(first) {
			first = pt.Time
		}
		if pt.Time.After(last) {
			last = pt.Time
		}
	}
	span := last.Sub(first)

	top := c.Max()
	coords := make([]string, n)
	p.Points = make([]plotPoint, n)
	for i, pt := range c.Points {
		x := float64(plotWidth) / 2
		switch {
		case span > 0:
			x = float64(pt.Time.Sub(first)) * float64(plotWidth) / float64(span)
		case n > 1:
			x = float64(i) * float64(plotWidth) / float64(n-1)
		}
		y := float64(plotHeight)
		if top > 0 {
			y = float64(plotHeight) - float64(pt.Count)*float64(plotHeight)/float64(top)
		}
		p.Points[i] = plotPoint{X: x, Y: y, Label: pt.Label, Count: blockstats.FormatCount(pt.Count)}
		coords[i] = strconv.FormatFloat(x, 'f', 1, 64) + "," + strconv.FormatFloat(y, 'f', 1, 64)
	}

	p.Polyline = strings.Join(coords, " ")
	p.YMax = blockstats.FormatCount(top)
	p.XFirst = c.Points[0].Label
	p.XLast = c.Points[n-1].Label
	return p
}

type peerRenderer struct {
	tmpl     *template.Template
	page     int
	pageSize int
}

func (r peerRenderer) RenderLoading(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "spinner", "Loading peer data...")
}

func (r peerRenderer) RenderError(w io.Writer, message string) error {
	return r.tmpl.ExecuteTemplate(w, "banner", peerErrorPrefix+message)
}

type cell struct {
	Text  string
	Align string
}

type peerPage struct {
	Columns   []peers.Column
	Rows      [][]cell
	Page      peers.Page
	PageSizes []int
	Prev      int
	Next      int
}

func (r peerRenderer) RenderReady(w io.Writer, t peers.Table) error {
	pg := peers.Paginate(t.Rows, r.page, r.pageSize)

	rows := make([][]cell, len(pg.Rows))
	for i, row := range pg.Rows {
		rows[i] = make([]cell, len(t.Columns))
		for j, col := range t.Columns {
			rows[i][j] = cell{Text: col.Cell(row), Align: col.Align}
		}
	}

	data := peerPage{
		Columns:   t.Columns,
		Rows:      rows,
		Page:      pg,
		PageSizes: config.PageSizes,
	}
	if pg.Page > 1 {
		data.Prev = pg.Page - 1
	}
	if pg.Page < pg.TotalPages {
		data.Next = pg.Page + 1
	}
	return r.tmpl.ExecuteTemplate(w, "peer_view", data)
}

package peers

import (
	"strconv"

	"github.com/btc-node-dashboard/internal/types"
)

// ColumnType tells the table sink how to render a cell
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnBoolean ColumnType = "boolean"
	ColumnNumber  ColumnType = "number"
)

// Column describes one column of the peer table
type Column struct {
	Field    string     `json:"field"`
	Header   string     `json:"headerName"`
	Type     ColumnType `json:"type"`
	Align    string     `json:"align"`
	Flex     float64    `json:"flex"`
	MinWidth int        `json:"minWidth"`
}

var columns = []Column{
	{Field: "ip", Header: "IP Address", Type: ColumnText, Align: "left", Flex: 1.5, MinWidth: 180},
	{Field: "ipVersion", Header: "IP Version", Type: ColumnText, Align: "center", Flex: 0.7, MinWidth: 100},
	{Field: "inbound", Header: "Direction", Type: ColumnBoolean, Align: "left", Flex: 0.8, MinWidth: 110},
	{Field: "connectionType", Header: "Connection Type", Type: ColumnText, Align: "left", Flex: 1.2, MinWidth: 160},
	{Field: "country", Header: "Country", Type: ColumnText, Align: "left", Flex: 1, MinWidth: 120},
	{Field: "ping", Header: "Ping (ms)", Type: ColumnNumber, Align: "right", Flex: 0.8, MinWidth: 100},
}

// Columns returns a copy of the fixed column schema
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// Cell renders the value of this column for r
func (c Column) Cell(r Row) string {
	switch c.Field {
	case "ip":
		return r.IP
	case "ipVersion":
		return r.IPVersion
	case "inbound":
		if r.Inbound {
			return "Inbound"
		}
		return "Outbound"
	case "connectionType":
		return r.ConnectionType
	case "country":
		return r.Country
	case "ping":
		return strconv.FormatInt(r.Ping, 10)
	default:
		return ""
	}
}

// Table is the ready state of the peer view
type Table struct {
	Rows    []Row    `json:"rows"`
	Columns []Column `json:"columns"`
	Total   int      `json:"total"`
}

func BuildTable(records []types.PeerRecord) Table {
	rows := ToRows(records)
	return Table{
		Rows:    rows,
		Columns: Columns(),
		Total:   len(rows),
	}
}

// Page is one page of rows. Page numbers start at 1.
type Page struct {
	Rows       []Row `json:"rows"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
	Total      int   `json:"total"`
}

// Paginate slices rows for display. Pages outside the range are clamped; a
// non-positive pageSize returns everything on one page.
func Paginate(rows []Row, page, pageSize int) Page {
	total := len(rows)
	if pageSize <= 0 {
		pageSize = total
		if pageSize == 0 {
			pageSize = 1
		}
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	pageRows := rows[start:end:end]
	if pageRows == nil {
		pageRows = []Row{}
	}

	return Page{
		Rows:       pageRows,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Total:      total,
	}
}

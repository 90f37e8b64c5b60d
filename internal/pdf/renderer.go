package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/castrolabs/osbot/internal/orders"
)

// Renderer turns service orders into PDF files under a working directory.
type Renderer struct {
	dir           string
	publicBaseURL string
}

// NewRenderer ensures the output directory exists.
func NewRenderer(dir, publicBaseURL string) (*Renderer, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "osbot-pdf")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pdf: create dir: %w", err)
	}
	return &Renderer{dir: dir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Dir returns the directory rendered files are written to.
func (r *Renderer) Dir() string { return r.dir }

// PublicURL derives the externally reachable URL for a rendered file.
func (r *Renderer) PublicURL(path string) string {
	if r.publicBaseURL == "" {
		return ""
	}
	return r.publicBaseURL + "/files/" + filepath.Base(path)
}

// RenderOrder writes the order as a one-page PDF and returns the file path.
func (r *Renderer) RenderOrder(order *orders.ServiceOrder) (string, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 12, toLatin(doc, "Ordem de Serviço"), "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "B", 13)
	doc.CellFormat(0, 10, order.OrderNumber, "", 1, "C", false, 0, "")
	doc.Ln(4)

	line := func(label, value string) {
		if value == "" {
			return
		}
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(45, 8, toLatin(doc, label), "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 8, toLatin(doc, value), "", "L", false)
	}

	line("Cliente:", order.ClientName)
	line("Telefone:", order.ClientPhone)
	line("E-mail:", order.ClientEmail)
	line("Endereço:", order.ClientAddress)
	doc.Ln(2)
	line("Serviço:", order.Title)
	line("Descrição:", order.Description)
	line("Categoria:", order.Category)
	line("Prioridade:", order.Priority)
	line("Status:", order.Status)
	doc.Ln(2)
	line("Aberta em:", order.OpenedAt.Format("02/01/2006 15:04"))
	if order.ExpectedAt != nil {
		line("Previsão:", order.ExpectedAt.Format("02/01/2006"))
	}
	if order.CompletedAt != nil {
		line("Concluída em:", order.CompletedAt.Format("02/01/2006 15:04"))
	}
	doc.Ln(2)

	if len(order.Parts) > 0 {
		doc.SetFont("Helvetica", "B", 11)
		doc.CellFormat(0, 8, toLatin(doc, "Peças"), "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		for _, part := range order.Parts {
			doc.CellFormat(0, 7, toLatin(doc, fmt.Sprintf("%dx %s — R$ %.2f", part.Quantity, part.Name, part.UnitPrice)), "", 1, "L", false, 0, "")
		}
		doc.Ln(2)
	}

	if order.EstimatedAmount > 0 {
		line("Orçamento:", fmt.Sprintf("R$ %.2f", order.EstimatedAmount))
	}
	line("Valor total:", fmt.Sprintf("R$ %.2f", order.TotalAmount))
	if order.Notes != "" {
		doc.Ln(2)
		line("Observações:", order.Notes)
	}

	name := fmt.Sprintf("%s-%d.pdf", order.OrderNumber, time.Now().UnixNano())
	path := filepath.Join(r.dir, name)
	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("pdf: write %s: %w", name, err)
	}
	return path, nil
}

// fpdf core fonts are cp1252; translate accented text accordingly.
func toLatin(doc *fpdf.Fpdf, s string) string {
	tr := doc.UnicodeTranslatorFromDescriptor("")
	return tr(s)
}

package extract

import (
	"archive/zip"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"docrag/internal/domain"
)

const cellSeparator = " | "

func failed(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, filepath.Base(path), err)
}

// extractPDF yields one document per page.
func extractPDF(path string) ([]domain.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		// pdf.Open leaves the file open when the header is invalid.
		if f != nil {
			f.Close()
		}
		return nil, failed(path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	docs := make([]domain.Document, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		text := ""
		if !p.V.IsNull() {
			if text, err = p.GetPlainText(nil); err != nil {
				return nil, failed(path, fmt.Errorf("page %d: %w", i, err))
			}
		}
		docs = append(docs, domain.Document{ID: name, Page: i, Text: strings.TrimSpace(text)})
	}
	return docs, nil
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"body>p"`
}

type docxParagraph struct {
	Runs []struct {
		Text []string `xml:"t"`
	} `xml:"r"`
}

// extractDOCX joins the paragraphs of word/document.xml with newlines.
func extractDOCX(path string) ([]domain.Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, failed(path, err)
	}
	defer zr.Close()

	var raw []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, failed(path, err)
		}
		raw, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, failed(path, err)
		}
		break
	}
	if raw == nil {
		return nil, failed(path, errors.New("word/document.xml not found"))
	}

	var body docxBody
	if err := xml.Unmarshal(raw, &body); err != nil {
		return nil, failed(path, err)
	}
	paras := make([]string, len(body.Paragraphs))
	for i, p := range body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				sb.WriteString(t)
			}
		}
		paras[i] = sb.String()
	}
	return []domain.Document{{
		ID:   filepath.Base(path),
		Page: 1,
		Text: strings.TrimSpace(strings.Join(paras, "\n")),
	}}, nil
}

// extractXLSX yields one document per sheet. The first row of a sheet is its
// header and is not part of the text.
func extractXLSX(path string) ([]domain.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, failed(path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var docs []domain.Document
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, failed(path, fmt.Errorf("sheet %q: %w", sheet, err))
		}
		docs = append(docs, domain.Document{
			ID:   name,
			Page: i + 1,
			Text: "Sheet: " + sheet + "\n" + joinRows(dataRows(rows)),
		})
	}
	return docs, nil
}

func extractXLS(path string) ([]domain.Document, error) {
	return nil, fmt.Errorf("%w: %s: legacy binary .xls workbooks are not supported, save as .xlsx",
		domain.ErrUnsupportedFormat, filepath.Base(path))
}

// extractCSV yields a single document. Like sheets, the header row is skipped.
func extractCSV(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failed(path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, failed(path, err)
	}
	return []domain.Document{{
		ID:   filepath.Base(path),
		Page: 1,
		Text: joinRows(dataRows(rows)),
	}}, nil
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func joinRows(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, cellSeparator)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

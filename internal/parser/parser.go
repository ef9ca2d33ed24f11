package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

const defaultPageNumber = 1

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxTextRe      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	pptxTextRe      = regexp.MustCompile(`(?s)<a:t>(.*?)</a:t>`)
	slideNameRe     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// Loader discovers source files in a directory and extracts their text page by page.
type Loader struct {
	extensions map[string]struct{}
	recursive  bool
}

func NewLoader(dataConfig config.DataConfig) *Loader {
	exts := make(map[string]struct{}, len(dataConfig.Extensions))
	for _, ext := range dataConfig.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	if len(exts) == 0 {
		exts[".pdf"] = struct{}{}
	}
	return &Loader{extensions: exts, recursive: dataConfig.Recursive}
}

// Discover returns the matching files under dir as slash separated paths
// relative to dir, sorted.
func (l *Loader) Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to open data directory: %s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !l.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := l.extensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Load extracts the pages of dir/rel. Page sources are set to rel.
func (l *Loader) Load(dir, rel string) ([]models.Page, error) {
	return LoadPages(filepath.Join(dir, filepath.FromSlash(rel)), rel)
}

// LoadPages extracts the text of the file at path, one entry per page.
func LoadPages(path, source string) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		texts []string
		err   error
	)
	switch ext {
	case ".pdf":
		texts, err = parsePDF(path)
	case ".docx":
		texts, err = parseDOCX(path)
	case ".pptx":
		texts, err = parsePPTX(path)
	case ".xlsx":
		texts, err = parseXLSX(path)
	case ".md", ".markdown":
		texts, err = parseMarkdown(path)
	case ".txt":
		texts, err = parseText(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	pages := make([]models.Page, 0, len(texts))
	for i, t := range texts {
		pages = append(pages, models.Page{
			Source:     source,
			PageNumber: i + defaultPageNumber,
			Content:    strings.TrimSpace(t),
		})
	}
	log.Debug().Str("source", source).Int("pages", len(pages)).Msg("Loaded document")
	return pages, nil
}

func parsePDF(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return pages, nil
}

// DOCX has no page numbers; the whole document is page 1
func parseDOCX(filePath string) ([]string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return []string{extractDocxText(r.Editable().GetContent())}, nil
}

func extractDocxText(xmlContent string) string {
	var paragraphs []string
	for _, p := range docxParagraphRe.FindAllString(xmlContent, -1) {
		var line strings.Builder
		for _, m := range docxTextRe.FindAllStringSubmatch(p, -1) {
			line.WriteString(html.UnescapeString(m[1]))
		}
		if strings.TrimSpace(line.String()) != "" {
			paragraphs = append(paragraphs, line.String())
		}
	}
	return strings.Join(paragraphs, "\n")
}

// one page per slide, ordered by slide number
func parsePPTX(filePath string) ([]string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	slides := map[int]string{}
	maxSlide := 0
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		slides[n] = extractPPTXText(string(data))
		maxSlide = max(maxSlide, n)
	}

	pages := make([]string, maxSlide)
	for n, t := range slides {
		pages[n-1] = t
	}
	return pages, nil
}

func extractPPTXText(xmlContent string) string {
	var parts []string
	for _, m := range pptxTextRe.FindAllStringSubmatch(xmlContent, -1) {
		parts = append(parts, html.UnescapeString(m[1]))
	}
	return strings.Join(parts, " ")
}

// one page per sheet
func parseXLSX(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		pages = append(pages, text.String())
	}
	return pages, nil
}

func parseMarkdown(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []string{markdownText(data)}, nil
}

// markdownText returns the readable text of a markdown document without markup.
func markdownText(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var buf strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				buf.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteString("\n")
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

func parseText(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []string{string(data)}, nil
}

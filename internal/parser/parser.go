package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"lexrag/internal/util"
)

// Parser extracts plain/markdown text from a downloaded document. It prefers
// a remote document-understanding service when an API key is configured and
// degrades to local extraction otherwise. It never returns an error: total
// failure is reported as bracketed marker text so the pipeline can
// distinguish it from a successful empty parse.
type Parser struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(apiKey, baseURL string) *Parser {
	return &Parser{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Failed reports whether text is a parse-failure marker rather than content.
func Failed(text string) bool {
	return strings.HasPrefix(text, "[")
}

// Parse extracts text from the file at path. Document parsing is slow;
// callers should budget generous timeouts on ctx.
func (p *Parser) Parse(ctx context.Context, path string) string {
	if p.apiKey == "" || p.baseURL == "" {
		return p.fallbackParse(path)
	}

	text, err := p.remoteParse(ctx, path)
	if err != nil {
		log.Printf("remote parse failed for %s: %v", path, err)
		return p.fallbackParse(path)
	}
	if text == "" {
		log.Printf("remote parse returned no content for %s", path)
		return p.fallbackParse(path)
	}
	log.Printf("parsed %s: %d chars via parse service", path, len(text))
	return text
}

// remoteParse uploads the file to the parse service and returns the
// extracted markdown.
func (p *Parser) remoteParse(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/parse", &body)
	if err != nil {
		return "", fmt.Errorf("build parse request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("parse service request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("parse service error %d: %s", resp.StatusCode, util.Truncate(string(raw), 200))
	}

	var parsed struct {
		Markdown string `json:"markdown"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode parse response: %w", err)
	}
	if parsed.Markdown != "" {
		return parsed.Markdown, nil
	}
	return parsed.Text, nil
}

// fallbackParse extracts text locally: page-by-page for PDFs, docconv for
// other office formats.
func (p *Parser) fallbackParse(path string) string {
	if _, err := os.Stat(path); err != nil {
		return fmt.Sprintf("[File not found: %s]", path)
	}

	var (
		text string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = extractPDF(path)
	} else {
		text, err = extractDocconv(path)
	}
	if err != nil {
		log.Printf("fallback parse failed for %s: %v", path, err)
		return fmt.Sprintf("[Failed to parse document: %v]", err)
	}
	log.Printf("parsed %s: %d chars via local fallback", path, len(text))
	return text
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// a single unreadable page should not sink the document
			continue
		}
		pages = append(pages, strings.TrimSpace(content))
	}
	return util.SanitizeText(strings.Join(pages, "\n\n")), nil
}

func extractDocconv(path string) (string, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("convert document: %w", err)
	}
	return util.SanitizeText(res.Body), nil
}

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/shishobooks/shisho/pkg/models"
)

const (
	sseWaitTimeout = 10 * time.Second
	maxAuthors     = 20
)

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "assemble a catalog entry from an ebook file, per the upload orchestration flow",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server-url", Value: "http://127.0.0.1:3000"},
			&cli.StringFlag{Name: "token", Required: true, Usage: "bearer token with Trusted or Admin role"},
			&cli.BoolFlag{Name: "extract-cover", Value: true},
			&cli.StringFlag{Name: "title", Usage: "override the extracted title"},
			&cli.StringFlag{Name: "series", Usage: "override the extracted series title"},
			&cli.Float64Flag{Name: "series-index", Usage: "override the extracted series index"},
			&cli.StringSliceFlag{Name: "author", Usage: "override authors, repeatable, \"Last,First\""},
			&cli.StringSliceFlag{Name: "genre", Usage: "override genres, repeatable"},
			&cli.StringFlag{Name: "language", Usage: "override the 2-letter language code"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("a file argument is required")
			}
			return runUpload(c, path)
		},
	}
}

type uploadClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (cl *uploadClient) url(path string) string {
	return strings.TrimRight(cl.baseURL, "/") + path
}

func (cl *uploadClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+cl.token)
	resp, err := cl.http.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, errors.Errorf("%s %s: %d: %s", req.Method, req.URL.Path, resp.StatusCode, body)
	}
	return resp, nil
}

func (cl *uploadClient) getJSON(path string, out any) error {
	resp, err := cl.do(mustRequest(http.MethodGet, cl.url(path), nil, ""))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return errors.WithStack(json.NewDecoder(resp.Body).Decode(out))
}

func (cl *uploadClient) postJSON(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.WithStack(err)
	}
	resp, err := cl.do(mustRequest(http.MethodPost, cl.url(path), bytes.NewReader(body), "application/json"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return errors.WithStack(json.NewDecoder(resp.Body).Decode(out))
}

func (cl *uploadClient) putJSON(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.WithStack(err)
	}
	resp, err := cl.do(mustRequest(http.MethodPut, cl.url(path), bytes.NewReader(body), "application/json"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return errors.WithStack(json.NewDecoder(resp.Body).Decode(out))
}

func mustRequest(method, url string, body io.Reader, contentType string) *http.Request {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		panic(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

type uploadInfo struct {
	FinalPath    string `json:"final_path"`
	Size         int64  `json:"size"`
	Hash         string `json:"hash"`
	OriginalName string `json:"original_name"`
}

type operationTicket struct {
	ID string `json:"id"`
}

// extractedAuthor mirrors metaextract.ParsedAuthor's untagged JSON shape.
type extractedAuthor struct {
	LastName  string
	FirstName string
}

// extractedMetadata mirrors metaextract.EbookMetadata's untagged JSON shape,
// as published on the "extract_meta" SSE event's "metadata" field.
type extractedMetadata struct {
	Title       string
	Authors     []extractedAuthor
	Genres      []string
	Language    string
	Series      string
	SeriesIndex *float64
	CoverFile   string
	Comments    string
}

type extractMetaEvent struct {
	OperationID string            `json:"operation_id"`
	Success     bool              `json:"success"`
	Metadata    extractedMetadata `json:"metadata"`
	Error       string            `json:"error"`
}

type searchResult struct {
	Kind  string
	ID    int64
	Title string
}

func runUpload(c *cli.Context, path string) error {
	cl := &uploadClient{baseURL: c.String("server-url"), token: c.String("token"), http: &http.Client{Timeout: 5 * time.Minute}}

	// Step 1: multipart upload.
	info, err := uploadFile(cl, path)
	if err != nil {
		return errors.Wrap(err, "uploading file")
	}
	fmt.Printf("uploaded to %s (%d bytes, sha256 %s)\n", info.FinalPath, info.Size, info.Hash)

	// Step 2: request metadata extraction.
	var ticket operationTicket
	if err := cl.postJSON("/api/convert/extract_meta", map[string]any{
		"path": info.FinalPath, "extract_cover": c.Bool("extract-cover"),
	}, &ticket); err != nil {
		return errors.Wrap(err, "requesting metadata extraction")
	}

	// Step 3: wait on the SSE stream for the matching operation.
	event, err := waitForOperation(cl, ticket.ID)
	if err != nil {
		return errors.Wrap(err, "waiting for metadata extraction")
	}
	if !event.Success {
		return errors.Errorf("metadata extraction failed: %s", event.Error)
	}
	meta := event.Metadata

	// Step 4: merge CLI overrides, truncate authors.
	if v := c.String("title"); v != "" {
		meta.Title = v
	}
	if v := c.String("series"); v != "" {
		meta.Series = v
	}
	if c.IsSet("series-index") {
		idx := c.Float64("series-index")
		meta.SeriesIndex = &idx
	}
	if raws := c.StringSlice("author"); len(raws) > 0 {
		meta.Authors = nil
		for _, raw := range raws {
			parts := strings.SplitN(raw, ",", 2)
			a := extractedAuthor{LastName: strings.TrimSpace(parts[0])}
			if len(parts) == 2 {
				a.FirstName = strings.TrimSpace(parts[1])
			}
			meta.Authors = append(meta.Authors, a)
		}
	}
	if len(c.StringSlice("genre")) > 0 {
		meta.Genres = c.StringSlice("genre")
	}
	if v := c.String("language"); v != "" {
		meta.Language = v
	}
	if len(meta.Authors) > maxAuthors {
		meta.Authors = meta.Authors[:maxAuthors]
	}

	// Step 5: resolve/create authors.
	authorIDs := make([]int64, 0, len(meta.Authors))
	for _, a := range meta.Authors {
		id, err := resolveAuthor(cl, a)
		if err != nil {
			return errors.Wrapf(err, "resolving author %q", a.LastName)
		}
		authorIDs = append(authorIDs, id)
	}

	// Step 6: resolve/create series.
	var seriesID *int64
	if meta.Series != "" {
		id, err := resolveSeries(cl, meta.Series)
		if err != nil {
			return errors.Wrap(err, "resolving series")
		}
		seriesID = &id
	}

	// Step 7: resolve language by code.
	languageID, err := resolveLanguage(cl, meta.Language)
	if err != nil {
		return errors.Wrap(err, "resolving language")
	}

	// Step 8: resolve genres, silently dropping unknown ones.
	genreIDs, err := resolveGenres(cl, meta.Genres)
	if err != nil {
		return errors.Wrap(err, "resolving genres")
	}

	// Step 9: find-or-create the ebook.
	ebook, err := findOrCreateEbook(cl, meta, authorIDs, genreIDs, seriesID, languageID)
	if err != nil {
		return errors.Wrap(err, "finding or creating ebook")
	}
	fmt.Printf("ebook %d: %s (base_dir %s)\n", ebook.ID, ebook.Title, ebook.BaseDir)

	// Step 10: move the uploaded file into books/<base_dir>/, register a
	// source, and import the extracted cover if the ebook has none yet.
	if err := finalizeSource(cl, ebook, info, path); err != nil {
		return errors.Wrap(err, "registering source")
	}
	if ebook.Cover == "" && meta.CoverFile != "" {
		if err := importCover(cl, ebook, meta.CoverFile); err != nil {
			return errors.Wrap(err, "importing cover")
		}
	}

	fmt.Println("done")
	return nil
}

func uploadFile(cl *uploadClient, path string) (*uploadInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.WithStack(err)
	}

	resp, err := cl.do(mustRequest(http.MethodPost, cl.url("/files/upload/form"), &body, writer.FormDataContentType()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	info := &uploadInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, errors.WithStack(err)
	}
	return info, nil
}

// waitForOperation reads the SSE stream until an extract_meta(_error) event
// whose operation_id matches, or sseWaitTimeout elapses, per §5.
func waitForOperation(cl *uploadClient, operationID string) (*extractMetaEvent, error) {
	req := mustRequest(http.MethodGet, cl.url("/events"), nil, "")
	req.Header.Set("Authorization", "Bearer "+cl.token)

	resp, err := cl.http.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	type result struct {
		event *extractMetaEvent
		err   error
	}
	done := make(chan result, 1)

	go func() {
		scanner := bufio.NewScanner(resp.Body)
		var kind string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				kind = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				if kind != "extract_meta" && kind != "extract_meta_error" {
					continue
				}
				var evt extractMetaEvent
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
					continue
				}
				if evt.OperationID == operationID {
					done <- result{event: &evt}
					return
				}
			}
		}
		done <- result{err: errors.New("event stream closed before a matching operation arrived")}
	}()

	select {
	case r := <-done:
		return r.event, r.err
	case <-time.After(sseWaitTimeout):
		return nil, errors.New("timed out waiting for metadata extraction")
	}
}

func resolveAuthor(cl *uploadClient, a extractedAuthor) (int64, error) {
	var results []searchResult
	if err := cl.getJSON("/search?query="+urlQueryEscape(a.LastName)+"&num_results=50", &results); err != nil {
		return 0, err
	}

	for _, r := range results {
		if r.Kind != "author" {
			continue
		}
		var candidate models.Author
		if err := cl.getJSON("/api/author/"+strconv.FormatInt(r.ID, 10), &candidate); err != nil {
			continue
		}
		if strings.EqualFold(candidate.LastName, a.LastName) && firstNameCompatible(candidate.FirstName, a.FirstName) {
			return candidate.ID, nil
		}
	}

	var created models.Author
	if err := cl.postJSON("/api/author", map[string]any{"last_name": a.LastName, "first_name": a.FirstName}, &created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

// firstNameCompatible treats two first names as the same person when one is
// empty, or when each whitespace-separated component of a matches the
// corresponding component of b: position 0 requires full equality, later
// positions require only a first-character match (so "Arthur Conan" matches
// "Arthur C"). Components past the shorter name's length are not compared.
func firstNameCompatible(a, b string) bool {
	if a == "" || b == "" {
		return true
	}

	aFields := strings.Fields(a)
	bFields := strings.Fields(b)
	n := len(aFields)
	if len(bFields) < n {
		n = len(bFields)
	}

	for i := 0; i < n; i++ {
		if i == 0 {
			if !strings.EqualFold(aFields[i], bFields[i]) {
				return false
			}
			continue
		}
		if !strings.EqualFold(aFields[i][:1], bFields[i][:1]) {
			return false
		}
	}
	return true
}

func resolveSeries(cl *uploadClient, title string) (int64, error) {
	want := strings.ToLower(strings.TrimSpace(title))

	var results []searchResult
	if err := cl.getJSON("/search?query="+urlQueryEscape(title)+"&num_results=50", &results); err != nil {
		return 0, err
	}
	for _, r := range results {
		if r.Kind != "series" {
			continue
		}
		if strings.ToLower(strings.TrimSpace(r.Title)) == want {
			return r.ID, nil
		}
	}

	var created models.Series
	if err := cl.postJSON("/api/series", map[string]any{"title": title}, &created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func resolveLanguage(cl *uploadClient, code string) (int64, error) {
	var languages []models.Language
	if err := cl.getJSON("/api/language/all", &languages); err != nil {
		return 0, err
	}
	for _, l := range languages {
		if strings.EqualFold(l.Code, code) {
			return l.ID, nil
		}
	}
	return 0, errors.Errorf("unknown language code %q", code)
}

func resolveGenres(cl *uploadClient, names []string) ([]int64, error) {
	var genres []models.Genre
	if err := cl.getJSON("/api/genre/all", &genres); err != nil {
		return nil, err
	}

	var ids []int64
	for _, name := range names {
		for _, g := range genres {
			if strings.EqualFold(g.Name, name) {
				ids = append(ids, g.ID)
				break
			}
		}
	}
	return ids, nil
}

func findOrCreateEbook(cl *uploadClient, meta extractedMetadata, authorIDs, genreIDs []int64, seriesID *int64, languageID int64) (*models.Ebook, error) {
	authorParam := make([]string, len(authorIDs))
	for i, id := range authorIDs {
		authorParam[i] = strconv.FormatInt(id, 10)
	}
	findURL := "/api/ebook/find?title=" + urlQueryEscape(meta.Title) + "&author_ids=" + strings.Join(authorParam, ",")
	if seriesID != nil {
		findURL += "&series_id=" + strconv.FormatInt(*seriesID, 10)
	}

	var existing models.Ebook
	err := cl.getJSON(findURL, &existing)
	if err == nil {
		return &existing, nil
	}

	var created models.Ebook
	if err := cl.postJSON("/api/ebook", map[string]any{
		"title":        meta.Title,
		"description":  meta.Comments,
		"series_id":    seriesID,
		"series_index": meta.SeriesIndex,
		"language_id":  languageID,
		"author_ids":   authorIDs,
		"genre_ids":    genreIDs,
	}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func finalizeSource(cl *uploadClient, ebook *models.Ebook, info *uploadInfo, originalPath string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(originalPath)), ".")

	var formats []models.Format
	if err := cl.getJSON("/api/format/all", &formats); err != nil {
		return err
	}
	var format *models.Format
	for i := range formats {
		if formats[i].Extension == ext {
			format = &formats[i]
			break
		}
	}
	if format == nil {
		return errors.Errorf("no registered format for extension %q", ext)
	}

	destination := ebook.BaseDir + "/" + filepath.Base(originalPath)
	var moved struct {
		FinalPath string `json:"final_path"`
	}
	if err := cl.postJSON("/files/move/upload", map[string]string{"from": info.FinalPath, "to": destination}, &moved); err != nil {
		return err
	}

	return cl.postJSON("/api/source", map[string]any{
		"ebook_id":  ebook.ID,
		"format_id": format.ID,
		"location":  moved.FinalPath,
		"size":      info.Size,
		"hash":      info.Hash,
	}, nil)
}

func importCover(cl *uploadClient, ebook *models.Ebook, coverFinalPath string) error {
	destination := ebook.BaseDir + "/cover.jpg"
	var moved struct {
		FinalPath string `json:"final_path"`
	}
	if err := cl.postJSON("/files/move/upload", map[string]string{"from": coverFinalPath, "to": destination}, &moved); err != nil {
		return err
	}

	// Update replaces associations wholesale, so the existing author/genre
	// sets must be resent alongside the new cover.
	authorIDs := make([]int64, len(ebook.Authors))
	for i, a := range ebook.Authors {
		authorIDs[i] = a.ID
	}
	genreIDs := make([]int64, len(ebook.Genres))
	for i, g := range ebook.Genres {
		genreIDs[i] = g.ID
	}

	return cl.putJSON("/api/ebook/"+strconv.FormatInt(ebook.ID, 10), map[string]any{
		"title":        ebook.Title,
		"description":  ebook.Description,
		"cover":        moved.FinalPath,
		"series_id":    ebook.SeriesID,
		"series_index": ebook.SeriesIndex,
		"language_id":  ebook.LanguageID,
		"author_ids":   authorIDs,
		"genre_ids":    genreIDs,
		"version":      ebook.Version,
	}, nil)
}

func urlQueryEscape(s string) string {
	return url.QueryEscape(s)
}

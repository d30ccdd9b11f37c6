// Package artifact keeps per-run files on disk: CSV exports of the fetched
// posts and comments and the markdown report.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"report_worker/core/domain"
	"report_worker/core/port/out"

	"github.com/rs/zerolog"
)

const source = "reddit"

var (
	postColumns = []string{
		"source", "subreddit", "id", "unique_id", "title", "body", "url", "author",
		"created_utc", "created_datetime", "num_comments", "score",
	}
	commentColumns = []string{
		"post_id", "post_title", "subreddit", "comment_id", "author", "body",
		"created_utc", "created_datetime", "score", "parent_id", "is_related",
	}
)

// FileStore implements out.ArtifactStore in a single directory.
type FileStore struct {
	dir string
	log zerolog.Logger
}

var _ out.ArtifactStore = (*FileStore)(nil)

func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir, log: log.With().Str("component", "artifacts").Logger()}, nil
}

func PostsFileName(req domain.RunRequest) string {
	return fmt.Sprintf("%s_reddit_posts_%s.csv", req.Slug(), req.Period())
}

func CommentsFileName(req domain.RunRequest) string {
	return fmt.Sprintf("%s_reddit_comments_%s.csv", req.Slug(), req.Period())
}

func ReportFileName(req domain.RunRequest) string {
	return fmt.Sprintf("report_%s_%s.md", req.Slug(), req.Period())
}

// HasForumData is true only when both CSV files exist.
func (s *FileStore) HasForumData(_ context.Context, req domain.RunRequest) (bool, error) {
	for _, name := range []string{PostsFileName(req), CommentsFileName(req)} {
		ok, err := s.exists(name)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (s *FileStore) LoadForumData(_ context.Context, req domain.RunRequest) (*out.ForumData, error) {
	postRows, err := s.readCSV(PostsFileName(req))
	if err != nil {
		return nil, err
	}
	commentRows, err := s.readCSV(CommentsFileName(req))
	if err != nil {
		return nil, err
	}

	data := &out.ForumData{
		Posts:    make([]domain.Post, 0, len(postRows)),
		Comments: make([]domain.Comment, 0, len(commentRows)),
	}
	for _, r := range postRows {
		data.Posts = append(data.Posts, domain.Post{
			ID:          r["id"],
			Title:       r["title"],
			Body:        r["body"],
			Subreddit:   r["subreddit"],
			Author:      optional(r["author"]),
			URL:         r["url"],
			CreatedAt:   parseUnix(r["created_utc"]),
			Score:       atoi(r["score"]),
			NumComments: atoi(r["num_comments"]),
		})
	}
	for _, r := range commentRows {
		related, _ := strconv.ParseBool(r["is_related"])
		data.Comments = append(data.Comments, domain.Comment{
			ID:           r["comment_id"],
			PostID:       r["post_id"],
			Body:         r["body"],
			Author:       optional(r["author"]),
			CreatedAt:    parseUnix(r["created_utc"]),
			Score:        atoi(r["score"]),
			ParentID:     r["parent_id"],
			KeywordMatch: related,
		})
	}
	return data, nil
}

func (s *FileStore) SaveForumData(_ context.Context, req domain.RunRequest, data *out.ForumData) error {
	titles := make(map[string]domain.Post, len(data.Posts))
	postRows := make([][]string, 0, len(data.Posts))
	for _, p := range data.Posts {
		titles[p.ID] = p
		created := unixSeconds(p.CreatedAt)
		postRows = append(postRows, []string{
			source, p.Subreddit, p.ID, uniqueID(p.ID, created), p.Title, p.Body, p.URL, deref(p.Author),
			created, p.CreatedAt.UTC().Format(time.RFC3339), strconv.Itoa(p.NumComments), strconv.Itoa(p.Score),
		})
	}

	commentRows := make([][]string, 0, len(data.Comments))
	for _, c := range data.Comments {
		post := titles[c.PostID]
		commentRows = append(commentRows, []string{
			c.PostID, post.Title, post.Subreddit, c.ID, deref(c.Author), c.Body,
			unixSeconds(c.CreatedAt), c.CreatedAt.UTC().Format(time.RFC3339), strconv.Itoa(c.Score), c.ParentID,
			strconv.FormatBool(c.KeywordMatch),
		})
	}

	if err := s.writeCSV(PostsFileName(req), postColumns, postRows); err != nil {
		return err
	}
	if err := s.writeCSV(CommentsFileName(req), commentColumns, commentRows); err != nil {
		return err
	}
	s.log.Info().Int("posts", len(postRows)).Int("comments", len(commentRows)).Str("period", req.Period()).Msg("forum data written")
	return nil
}

func (s *FileStore) LoadReport(_ context.Context, req domain.RunRequest) (string, string, bool, error) {
	name := ReportFileName(req)
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", name, false, nil
	}
	if err != nil {
		return "", name, false, fmt.Errorf("read report: %w", err)
	}
	return string(b), name, true, nil
}

func (s *FileStore) SaveReport(_ context.Context, req domain.RunRequest, body string) (string, error) {
	name := ReportFileName(req)
	if err := s.writeFile(name, func(w io.Writer) error {
		_, err := io.WriteString(w, body)
		return err
	}); err != nil {
		return "", err
	}
	return name, nil
}

func (s *FileStore) exists(name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) writeCSV(name string, header []string, rows [][]string) error {
	return s.writeFile(name, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	})
}

// writeFile replaces name atomically.
func (s *FileStore) writeFile(name string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// readCSV returns rows keyed by header name.
func (s *FileStore) readCSV(name string) ([]map[string]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func uniqueID(id, created string) string {
	sum := sha256.Sum256([]byte(id + created))
	return hex.EncodeToString(sum[:])
}

func unixSeconds(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', -1, 64)
}

func parseUnix(s string) time.Time {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Vodeneev/loterias/internal/pkg/export"
	"github.com/Vodeneev/loterias/internal/pkg/models"
)

type memMirror struct {
	files map[string][]byte
	err   error
}

func (m *memMirror) Mirror(ctx context.Context, name string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = data
	return nil
}

func snapshot(n int) *export.Snapshot {
	var draws []models.Draw
	for i := 0; i < n; i++ {
		draws = append(draws, models.Draw{
			Game:    models.Bonoloto,
			Date:    models.NewDate(2024, time.September, 9+i),
			Numbers: []int{1, 2, 3, 4, 5, 6},
		})
	}
	return export.NewExporter(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)).Historic(draws, nil)
}

func TestPublish_WritesAndMirrors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "api")
	mirror := &memMirror{}
	p, err := NewPublisher(dir, mirror)
	if err != nil {
		t.Fatalf("NewPublisher error: %v", err)
	}

	written, err := p.Publish(context.Background(), "BONOLOTO.json", snapshot(2))
	if err != nil || !written {
		t.Fatalf("Publish = %v, %v", written, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "BONOLOTO.json"))
	if err != nil {
		t.Fatalf("read published file: %v", err)
	}
	if !strings.Contains(string(data), `"generated_at": "2024-10-01T00:00:00Z"`) {
		t.Errorf("unexpected content:\n%s", data)
	}
	if string(mirror.files["BONOLOTO.json"]) != string(data) {
		t.Error("mirror did not receive the published bytes")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("output dir holds %d entries, want only the snapshot", len(entries))
	}
}

func TestPublish_EmptyViewKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPublisher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := p.Publish(ctx, "lae_historico.json", snapshot(3)); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(filepath.Join(dir, "lae_historico.json"))

	written, err := p.Publish(ctx, "lae_historico.json", snapshot(0))
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if written {
		t.Error("an empty view must not be written")
	}
	after, _ := os.ReadFile(filepath.Join(dir, "lae_historico.json"))
	if string(before) != string(after) {
		t.Error("empty view replaced the previously published file")
	}

	written, err = p.Publish(ctx, "GORDO.json", snapshot(0))
	if err != nil || written {
		t.Errorf("empty first publication = %v, %v", written, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "GORDO.json")); !os.IsNotExist(err) {
		t.Error("empty view created a file")
	}
}

func TestPublish_NonEmptyAlwaysOverwrites(t *testing.T) {
	dir := t.TempDir()
	p, _ := NewPublisher(dir, nil)
	ctx := context.Background()

	if _, err := p.Publish(ctx, "lae_latest.json", snapshot(3)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Publish(ctx, "lae_latest.json", snapshot(1)); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "lae_latest.json"))
	if strings.Count(string(data), `"game": "BONOLOTO"`) != 1 {
		t.Errorf("file was not replaced:\n%s", data)
	}
}

func TestPublish_MirrorFailureIsNotFatal(t *testing.T) {
	p, _ := NewPublisher(t.TempDir(), &memMirror{err: errors.New("bucket unreachable")})
	written, err := p.Publish(context.Background(), "EURO.json", snapshot(1))
	if err != nil || !written {
		t.Errorf("Publish = %v, %v", written, err)
	}
}

func TestNewPublisher_Invalid(t *testing.T) {
	if _, err := NewPublisher("", nil); err == nil {
		t.Error("empty dir should fail")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPublisher(filepath.Join(file, "api"), nil); err == nil {
		t.Error("dir below a regular file should fail")
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	b, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Mirror_PutsUnderPrefix(t *testing.T) {
	client := &fakeS3{}
	m := newS3Mirror(client, "draws", "api/v1")

	if err := m.Mirror(context.Background(), "lae_latest.json", []byte(`{"results":[]}`)); err != nil {
		t.Fatalf("Mirror error: %v", err)
	}
	if aws.ToString(client.input.Bucket) != "draws" || aws.ToString(client.input.Key) != "api/v1/lae_latest.json" {
		t.Errorf("put to %s/%s", aws.ToString(client.input.Bucket), aws.ToString(client.input.Key))
	}
	if client.body != `{"results":[]}` {
		t.Errorf("body = %q", client.body)
	}
	if got := newS3Mirror(client, "draws", "").Key("EURO.json"); got != "EURO.json" {
		t.Errorf("Key without prefix = %q", got)
	}
}

package store

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// Codec turns the task collection into file bytes and back.
type Codec interface {
	Encode(tasks []Task) ([]byte, error)
	Decode(b []byte) ([]Task, error)
}

// CodecFor picks YAML for .yaml/.yml paths and JSON for everything else.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLCodec{}
	default:
		return JSONCodec{}
	}
}

// taskRecord is the on-disk shape. isDone is the pre-status boolean; it is still
// written so older builds can read the file, and only read when status is absent.
type taskRecord struct {
	ID      string     `json:"id" yaml:"id"`
	Title   string     `json:"title" yaml:"title"`
	Status  *string    `json:"status,omitempty" yaml:"status,omitempty"`
	DueDate *time.Time `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	Note    string     `json:"note,omitempty" yaml:"note,omitempty"`
	Tags    []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	IsDone  *bool      `json:"isDone,omitempty" yaml:"isDone,omitempty"`

	Priority   int    `json:"priority,omitempty" yaml:"priority,omitempty"`
	CategoryID string `json:"categoryId,omitempty" yaml:"categoryId,omitempty"`
}

func toRecords(tasks []Task) []taskRecord {
	out := make([]taskRecord, 0, len(tasks))
	for _, t := range tasks {
		status := string(t.Status)
		done := t.IsDone()
		out = append(out, taskRecord{
			ID:      t.ID,
			Title:   t.Title,
			Status:  &status,
			DueDate: t.DueDate,
			Note:    t.Note,
			Tags:    t.Tags,
			IsDone:  &done,

			Priority:   t.Priority,
			CategoryID: t.CategoryID,
		})
	}
	return out
}

func fromRecords(recs []taskRecord) []Task {
	out := make([]Task, 0, len(recs))
	for _, r := range recs {
		t := Task{
			ID:      r.ID,
			Title:   r.Title,
			Status:  StatusTodo,
			DueDate: r.DueDate,
			Note:    r.Note,
			Tags:    r.Tags,

			CategoryID: strings.TrimSpace(r.CategoryID),
		}
		if ValidPriority(r.Priority) {
			t.Priority = r.Priority
		}
		switch {
		case r.Status != nil:
			// stored values must match exactly; anything else stays todo
			if st := Status(*r.Status); st.Valid() {
				t.Status = st
			}
		case r.IsDone != nil && *r.IsDone:
			t.Status = StatusDone
		}
		out = append(out, t)
	}
	return out
}

type JSONCodec struct{}

func (JSONCodec) Encode(tasks []Task) ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(toRecords(tasks), "", "  ")
}

func (JSONCodec) Decode(b []byte) ([]Task, error) {
	var recs []taskRecord
	if err := sonic.ConfigStd.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	return fromRecords(recs), nil
}

type YAMLCodec struct{}

func (YAMLCodec) Encode(tasks []Task) ([]byte, error) {
	return yaml.Marshal(toRecords(tasks))
}

func (YAMLCodec) Decode(b []byte) ([]Task, error) {
	var recs []taskRecord
	if err := yaml.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	return fromRecords(recs), nil
}

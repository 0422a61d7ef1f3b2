package chapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/types"
)

const chapterOp = "op-chapter"

func chapterResult(t *testing.T, title, content string, words any, next string) *providers.Result {
	t.Helper()
	payload := map[string]any{
		"generatedChapter": map[string]any{
			"chapterTitle": map[string]any{
				"chapterTitle":           title,
				"contenido_capitulo":     content,
				"conteo_palabras":        words,
				"referencias_usadas":     []any{"Ref A", map[string]any{"autor": "B"}},
				"resumen_para_siguiente": next,
			},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	res, err := providers.NewStructuredResult(raw)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func testSkeleton(t *testing.T) types.Skeleton {
	t.Helper()
	sk, err := ParseSkeleton(mustStructured(t, sampleSkeleton))
	if err != nil {
		t.Fatal(err)
	}
	return sk
}

func TestState(t *testing.T) {
	st := NewState([]string{"capitulo_1", "capitulo_2"})
	if id, ok := st.Next(); !ok || id != "capitulo_1" {
		t.Errorf("Next() = %q, %v", id, ok)
	}
	if st.BookComplete() {
		t.Error("fresh state should not be complete")
	}
	if p := st.Progress(); p.Total != 2 || p.Completed != 0 {
		t.Errorf("Progress() = %+v", p)
	}
	if NewState(nil).BookComplete() {
		t.Error("empty sequence should not count as complete")
	}
}

func TestGenerateNext_ThreadsContext(t *testing.T) {
	sk := testSkeleton(t)
	mock := providers.NewMockClient().On(chapterOp,
		providers.MockResponse{Chunks: []string{"Hola", " mundo"}, Result: chapterResult(t, "Intro", "uno dos tres", 3, "ctx-1")},
		providers.MockResponse{Result: chapterResult(t, "", "cuatro cinco", "2", "ctx-2")},
		providers.MockResponse{Result: chapterResult(t, "Fin", "seis", nil, "ctx-3")},
	)
	seq := NewSequencer(Config{Runner: mock, OperationID: chapterOp})

	st := NewState(sk.ChapterIDs())
	var streamed strings.Builder
	sink := func(text string) { streamed.WriteString(text) }

	for i := 0; i < 3; i++ {
		var err error
		st, _, err = seq.GenerateNext(context.Background(), st, sk, "compendio", sink)
		if err != nil {
			t.Fatalf("GenerateNext(%d) error = %v", i, err)
		}
	}

	if !st.BookComplete() {
		t.Fatal("book should be complete")
	}
	if streamed.String() != "Hola mundo" {
		t.Errorf("streamed = %q", streamed.String())
	}
	if got, want := st.Completed, sk.ChapterIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Completed = %v, want %v", got, want)
	}
	if st.PreviousContext != "ctx-3" {
		t.Errorf("PreviousContext = %q", st.PreviousContext)
	}

	calls := mock.CallsFor(chapterOp)
	if len(calls) != 3 {
		t.Fatalf("calls = %d", len(calls))
	}
	wantPrev := []string{"", "ctx-1", "ctx-2"}
	for i, c := range calls {
		if c.Inputs["previous_context"] != wantPrev[i] {
			t.Errorf("call %d previous_context = %v, want %q", i, c.Inputs["previous_context"], wantPrev[i])
		}
		if c.Inputs["capituloConstruir"] != ChapterID(i+1) {
			t.Errorf("call %d capituloConstruir = %v", i, c.Inputs["capituloConstruir"])
		}
		if c.Inputs["CompendioMd"] != "compendio" {
			t.Errorf("call %d CompendioMd = %v", i, c.Inputs["CompendioMd"])
		}
		if c.Inputs["Skeleton"] != string(sk.Master) {
			t.Errorf("call %d Skeleton not forwarded", i)
		}
	}

	chapters := st.Chapters()
	if chapters[0].Title != "Intro" || chapters[0].WordCount != 3 {
		t.Errorf("chapter 1 = %+v", chapters[0])
	}
	if chapters[1].Title != "Marco teórico" || chapters[1].WordCount != 2 {
		t.Errorf("chapter 2 = %+v", chapters[1])
	}
	if chapters[2].WordCount != 1 {
		t.Errorf("chapter 3 word count = %d, want computed 1", chapters[2].WordCount)
	}
	if got := chapters[0].UsedReferences; len(got) != 2 || got[0] != "Ref A" || !strings.Contains(got[1], "autor") {
		t.Errorf("UsedReferences = %v", got)
	}

	if _, _, err := seq.GenerateNext(context.Background(), st, sk, "compendio", nil); !errors.Is(err, ErrNothingToGenerate) {
		t.Errorf("error = %v, want ErrNothingToGenerate", err)
	}
}

func TestGenerateNext_FailureKeepsState(t *testing.T) {
	sk := testSkeleton(t)
	tests := []struct {
		name string
		resp providers.MockResponse
		is   error
	}{
		{"transport", providers.MockResponse{Err: fmt.Errorf("%w: refused", providers.ErrTransport)}, providers.ErrTransport},
		{"wrong shape", providers.MockResponse{Result: providers.NewStringResult(`{"chapter": "x"}`)}, providers.ErrMalformedResponse},
		{"not json", providers.MockResponse{Result: providers.NewStringResult("plain prose")}, providers.ErrMalformedResponse},
		{"empty chapter", providers.MockResponse{Result: mustStructured(t, `{"generatedChapter":{"chapterTitle":{}}}`)}, providers.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := providers.NewMockClient().On(chapterOp, tt.resp)
			seq := NewSequencer(Config{Runner: mock, OperationID: chapterOp})
			st := NewState(sk.ChapterIDs())

			next, _, err := seq.GenerateNext(context.Background(), st, sk, "c", nil)
			if !errors.Is(err, tt.is) {
				t.Fatalf("error = %v, want %v", err, tt.is)
			}
			if next.CurrentIndex != 0 || len(next.Completed) != 0 || len(next.Generated) != 0 {
				t.Errorf("state advanced on failure: %+v", next)
			}
		})
	}
}

func TestGenerateNext_PartialChapter(t *testing.T) {
	sk := testSkeleton(t)
	res := mustStructured(t, `{"generatedChapter":{"chapterTitle":{"resumen_para_siguiente":"ctx"}}}`)
	mock := providers.NewMockClient().On(chapterOp, providers.MockResponse{Result: res})
	seq := NewSequencer(Config{Runner: mock, OperationID: chapterOp})

	next, ch, err := seq.GenerateNext(context.Background(), NewState(sk.ChapterIDs()), sk, "c", nil)
	if err != nil {
		t.Fatalf("GenerateNext() error = %v", err)
	}
	if ch.Content != "" || ch.WordCount != 0 {
		t.Errorf("content = %q, words = %d", ch.Content, ch.WordCount)
	}
	if ch.Title != sk.Chapters[0].Title {
		t.Errorf("title = %q, want skeleton title %q", ch.Title, sk.Chapters[0].Title)
	}
	if next.CurrentIndex != 1 || next.PreviousContext != "ctx" {
		t.Errorf("state = %+v", next)
	}
}

func TestState_Edit(t *testing.T) {
	sk := testSkeleton(t)
	mock := providers.NewMockClient().On(chapterOp,
		providers.MockResponse{Result: chapterResult(t, "A", "uno", 1, "ctx-1")},
		providers.MockResponse{Result: chapterResult(t, "B", "dos", 1, "ctx-2")},
	)
	seq := NewSequencer(Config{Runner: mock, OperationID: chapterOp})
	st := NewState(sk.ChapterIDs())
	st, _, _ = seq.GenerateNext(context.Background(), st, sk, "c", nil)
	st, _, _ = seq.GenerateNext(context.Background(), st, sk, "c", nil)

	t.Run("older chapter keeps rolling context", func(t *testing.T) {
		summary := "edited-1"
		next, ch, err := st.Edit("capitulo_1", "a b c d", &summary)
		if err != nil {
			t.Fatal(err)
		}
		if ch.WordCount != 4 || ch.NextContext != "edited-1" {
			t.Errorf("chapter = %+v", ch)
		}
		if next.PreviousContext != "ctx-2" {
			t.Errorf("PreviousContext = %q", next.PreviousContext)
		}
		if st.Generated["capitulo_1"].Content != "uno" {
			t.Error("Edit mutated the original state")
		}
	})

	t.Run("latest chapter refreshes rolling context", func(t *testing.T) {
		summary := "edited-2"
		next, _, err := st.Edit("capitulo_2", "x y", &summary)
		if err != nil {
			t.Fatal(err)
		}
		if next.PreviousContext != "edited-2" {
			t.Errorf("PreviousContext = %q", next.PreviousContext)
		}
	})

	t.Run("unknown chapter", func(t *testing.T) {
		if _, _, err := st.Edit("capitulo_3", "x", nil); !errors.Is(err, ErrUnknownChapter) {
			t.Errorf("error = %v", err)
		}
	})
}

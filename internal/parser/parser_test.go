package parser

import (
	"strings"
	"testing"

	"github.com/wyllianbs/QuizRandomShuffle/internal/model"
)

const sampleDoc = `\documentclass{exam}
\begin{document}

{% Q00001
\rtask{Qual a capital do Brasil?}
\begin{answerlist}{4}
    \ti Rio de Janeiro
    \di Brasilia
    \ti Sao Paulo
    \ti Salvador
\end{answerlist}
}

{% Q00002
\rtask{Marque V ou F.}
\begin{answerlist}{2}
    \ti[V.] O Sol e uma estrela.
    \ti[F.] A Lua e um planeta.
\end{answerlist}
}

{% Q00003
\rtask{Quanto e 2+2?}
\begin{answerlist}{3}
    \ti 3
    \di 4
    \ti 5
\end{answerlist}
}

\end{document}
`

func TestParseSample(t *testing.T) {
	doc, warnings := Parse(sampleDoc)
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if len(doc.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(doc.Questions))
	}

	wantIDs := []string{"Q00001", "Q00002", "Q00003"}
	wantKinds := []model.Kind{model.KindMultipleChoice, model.KindTrueFalse, model.KindMultipleChoice}
	for i, q := range doc.Questions {
		if q.ID != wantIDs[i] {
			t.Errorf("question %d: ID = %q, want %q", i, q.ID, wantIDs[i])
		}
		if q.Kind != wantKinds[i] {
			t.Errorf("question %d: kind = %q, want %q", i, q.Kind, wantKinds[i])
		}
		if q.Malformed {
			t.Errorf("question %d: unexpectedly malformed", i)
		}
	}

	mc, tf := doc.CountKinds()
	if mc != 2 || tf != 1 {
		t.Errorf("CountKinds = (%d, %d), want (2, 1)", mc, tf)
	}
}

func TestParseAnswerItems(t *testing.T) {
	doc, _ := Parse(sampleDoc)
	q := doc.Questions[0]

	if len(q.Answers) != 4 {
		t.Fatalf("expected 4 answer items, got %d", len(q.Answers))
	}
	wantContents := []string{" Rio de Janeiro", " Brasilia", " Sao Paulo", " Salvador"}
	for i, item := range q.Answers {
		if item.Content != wantContents[i] {
			t.Errorf("item %d: content = %q, want %q", i, item.Content, wantContents[i])
		}
		if item.Indent != "    " {
			t.Errorf("item %d: indent = %q, want four spaces", i, item.Indent)
		}
		wantMarker := model.MarkerIncorrect
		if i == 1 {
			wantMarker = model.MarkerCorrect
		}
		if item.Marker != wantMarker {
			t.Errorf("item %d: marker = %q, want %q", i, item.Marker, wantMarker)
		}
	}

	if pos := q.CorrectPosition(); pos != 1 {
		t.Errorf("CorrectPosition = %d, want 1", pos)
	}
	if letter := q.KeyLetter(); letter != "B" {
		t.Errorf("KeyLetter = %q, want B", letter)
	}
}

func TestTrueFalseNotItemized(t *testing.T) {
	doc, _ := Parse(sampleDoc)
	q := doc.Questions[1]

	if q.Kind != model.KindTrueFalse {
		t.Fatalf("expected true/false kind, got %q", q.Kind)
	}
	if len(q.Answers) != 0 {
		t.Errorf("true/false question should carry no answer items, got %d", len(q.Answers))
	}
	if pos := q.CorrectPosition(); pos != -1 {
		t.Errorf("CorrectPosition = %d, want -1", pos)
	}
}

func TestLosslessReconstruction(t *testing.T) {
	doc, _ := Parse(sampleDoc)
	if got := doc.Render(doc.Questions); got != sampleDoc {
		t.Errorf("reconstruction differs from input:\n got: %q\nwant: %q", got, sampleDoc)
	}
}

func TestRebuildAfterPermutation(t *testing.T) {
	doc, _ := Parse(sampleDoc)
	q := doc.Questions[0]

	// Reverse the alternatives and rebuild the block text.
	items := make([]model.AnswerItem, len(q.Answers))
	for i, item := range q.Answers {
		items[len(items)-1-i] = item
	}
	rebuilt := q.WithAnswers(items)

	want := `{% Q00001
\rtask{Qual a capital do Brasil?}
\begin{answerlist}{4}
    \ti Salvador
    \ti Sao Paulo
    \di Brasilia
    \ti Rio de Janeiro
\end{answerlist}
}
`
	if rebuilt.Raw != want {
		t.Errorf("rebuilt block:\n got: %q\nwant: %q", rebuilt.Raw, want)
	}
	if pos := rebuilt.CorrectPosition(); pos != 2 {
		t.Errorf("CorrectPosition after reverse = %d, want 2", pos)
	}
}

func TestBracketLabelKeptWithContent(t *testing.T) {
	text := `{% Q1
\rtask{Escolha.}
\begin{answerlist}{2}
    \ti[a.] primeira
    \di[b.] segunda
\end{answerlist}
}
`
	doc, _ := Parse(text)
	if len(doc.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(doc.Questions))
	}
	q := doc.Questions[0]
	if len(q.Answers) != 2 {
		t.Fatalf("expected 2 answer items, got %d", len(q.Answers))
	}
	if q.Answers[0].Content != "[a.] primeira" {
		t.Errorf("content = %q, want label kept", q.Answers[0].Content)
	}
	if q.Answers[1].Marker != model.MarkerCorrect {
		t.Errorf("expected second item to be the correct one")
	}
}

func TestUnclosedBlock(t *testing.T) {
	text := `header line

{% Q1
\rtask{Primeira.}
\begin{answerlist}{2}
    \di sim
    \ti nao
\end{answerlist}
}

{% Q2
\rtask{Nunca fecha.}
\begin{answerlist}{2}
    \di x
    \ti y
\end{answerlist}
`
	doc, warnings := Parse(text)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].ID != "Q2" {
		t.Errorf("warning ID = %q, want Q2", warnings[0].ID)
	}
	if len(doc.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(doc.Questions))
	}
	if !doc.Questions[1].Malformed {
		t.Error("expected second question to be flagged malformed")
	}
	if doc.Questions[1].Shufflable() {
		t.Error("malformed question must not be shufflable")
	}
	// Nothing is dropped: the malformed tail is preserved verbatim.
	if got := doc.Render(doc.Questions); got != text {
		t.Errorf("reconstruction differs from input:\n got: %q\nwant: %q", got, text)
	}
}

func TestBlockReopenedBeforeClose(t *testing.T) {
	text := `{% Q1
\rtask{Aberta.}
\begin{answerlist}{2}
    \di x
    \ti y
\end{answerlist}
{% Q2
\rtask{Fechada.}
\begin{answerlist}{2}
    \ti a
    \di b
\end{answerlist}
}
`
	doc, warnings := Parse(text)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if warnings[0].ID != "Q1" || warnings[0].Line != 1 {
		t.Errorf("warning = %+v, want Q1 at line 1", warnings[0])
	}
	if len(doc.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(doc.Questions))
	}
	if !doc.Questions[0].Malformed {
		t.Error("expected first question to be flagged malformed")
	}
	if doc.Questions[1].Malformed {
		t.Error("second question should parse cleanly")
	}
	if doc.Questions[1].ID != "Q2" {
		t.Errorf("second question ID = %q, want Q2", doc.Questions[1].ID)
	}
	if got := doc.Render(doc.Questions); got != text {
		t.Errorf("reconstruction differs from input:\n got: %q\nwant: %q", got, text)
	}
}

func TestNoBlocks(t *testing.T) {
	text := "just a preamble\nwith no questions at all\n"
	doc, warnings := Parse(text)
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if len(doc.Questions) != 0 {
		t.Fatalf("expected no questions, got %d", len(doc.Questions))
	}
	if doc.Render(nil) != text {
		t.Error("blockless input must survive untouched")
	}
}

func TestIdentifierVariants(t *testing.T) {
	tests := []struct {
		name string
		open string
		want string
	}{
		{"tight", "{% Q10", "Q10"},
		{"space before percent", "{ % Q11", "Q11"},
		{"no space after percent", "{%Q12", "Q12"},
		{"spaces everywhere", "{ %Q13", "Q13"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.open + "\n\\rtask{stem}\n\\begin{answerlist}{2}\n \\di a\n \\ti b\n\\end{answerlist}\n}\n"
			doc, _ := Parse(text)
			if len(doc.Questions) != 1 {
				t.Fatalf("expected 1 question, got %d", len(doc.Questions))
			}
			if doc.Questions[0].ID != tt.want {
				t.Errorf("ID = %q, want %q", doc.Questions[0].ID, tt.want)
			}
		})
	}
}

func TestConditionalRevealIsTrueFalse(t *testing.T) {
	text := `{% Q1
\rtask{Julgue os itens.}
\ifnum\gabarito=1 mostrar \fi
}
`
	doc, _ := Parse(text)
	if len(doc.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(doc.Questions))
	}
	if doc.Questions[0].Kind != model.KindTrueFalse {
		t.Errorf("kind = %q, want true_false", doc.Questions[0].Kind)
	}
}

func TestQuestionWithoutAnswerlist(t *testing.T) {
	text := `{% Q1
\rtask{Questao dissertativa sem alternativas.}
}
`
	doc, _ := Parse(text)
	q := doc.Questions[0]
	if len(q.Answers) != 0 {
		t.Errorf("expected no answer items, got %d", len(q.Answers))
	}
	if q.CorrectPosition() != -1 {
		t.Error("question without answerlist carries no key position")
	}
	if !strings.Contains(doc.Render(doc.Questions), "dissertativa") {
		t.Error("raw block must be preserved")
	}
}

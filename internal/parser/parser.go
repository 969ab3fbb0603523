// Package parser splits a LaTeX exam file into header, question blocks, and
// footer. A block opens with a brace followed by a % identifier comment
// ({% Q00123) and is promoted to a question when its outermost brace level
// contains \rtask. Parsing is lossless: header, blocks, the text between
// blocks, and the footer together reproduce the input byte-for-byte.
package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/wyllianbs/QuizRandomShuffle/internal/model"
)

var (
	// idPattern matches the opening delimiter with its identifier token.
	// Covers {% ID, { % ID, {%ID and { %ID.
	idPattern = regexp.MustCompile(`\{\s*%\s*(\S+)`)

	// vfPattern detects true/false questions: bracketed V/F item labels or
	// the conditional construct that reveals the key at compile time.
	vfPattern = regexp.MustCompile(
		`\\ti\[V\.\]|\\ti\[F\.\]|\\doneitem\[V\.\]|\\doneitem\[F\.\]|\\ifnum\\gabarito`)

	// answerListBlock captures the begin line, the item region, and the end
	// line of the first answerlist environment in a block.
	answerListBlock = regexp.MustCompile(
		`(?s)(\\begin\{answerlist\}[^\n]*\n)(.*?)(\n?[ \t]*\\end\{answerlist\})`)

	// itemMacro matches an alternative's marker macro with its optional label.
	itemMacro = regexp.MustCompile(`\\(ti|di)(\[[^\]]*\])?`)
)

// Warning reports a malformed block. The block is kept verbatim in its
// original position but excluded from shuffling.
type Warning struct {
	Line   int // 1-based line of the block opening
	ID     string
	Reason string
}

// frame tracks one open brace level.
type frame struct {
	lineStart int
	hasRtask  bool
	id        string
}

// span is a detected block with its byte offsets in the input.
type span struct {
	start     int
	end       int
	content   string
	id        string
	malformed bool
}

// Parse splits the base document text into a Document plus warnings for any
// malformed blocks. It never fails: unparseable regions stay in the header,
// footer, or separators, so no input text is ever dropped.
func Parse(text string) (*model.Document, []Warning) {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	// offsets[i] is the byte offset of line i; offsets[len(lines)] is len(text).
	offsets := make([]int, len(lines)+1)
	for i, line := range lines {
		offsets[i+1] = offsets[i] + len(line)
	}

	var (
		blocks   []span
		warnings []Warning
		stack    []frame
		acc      []string
		inside   bool
		startLn  int // 1-based
		curID    string
	)

	for i, line := range lines {
		num := i + 1
		hasRtask := strings.Contains(line, `\rtask`)
		idStr := ""
		idPending := false
		if m := idPattern.FindStringSubmatch(line); m != nil {
			idStr = m[1]
			idPending = true
		}
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")

		// A new identifier while a block is still open means the previous
		// block never closed. Keep its text in place, flag it, and restart.
		if opens > 0 && idPending && len(stack) > 0 {
			if inside {
				blocks = append(blocks, span{
					start:     offsets[startLn-1],
					end:       offsets[i],
					content:   strings.Join(lines[startLn-1:i], ""),
					id:        curID,
					malformed: true,
				})
				warnings = append(warnings, Warning{
					Line:   startLn,
					ID:     curID,
					Reason: "block reopened before the previous one closed",
				})
			}
			stack = stack[:0]
			inside = false
			acc = nil
		}

		for range opens {
			f := frame{lineStart: num}
			if idPending {
				f.id = idStr
				idPending = false // only the first brace of the line takes the ID
			}
			stack = append(stack, f)
		}

		// \rtask anywhere in the block promotes the outermost level.
		if len(stack) > 0 && hasRtask {
			stack[0].hasRtask = true
		}

		if len(stack) > 0 && stack[0].hasRtask {
			if !inside {
				inside = true
				startLn = stack[0].lineStart
				curID = stack[0].id
				acc = append([]string(nil), lines[startLn-1:num]...)
			} else {
				acc = append(acc, line)
			}
		}

		for range closes {
			if len(stack) == 0 {
				continue
			}
			closed := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if closed.hasRtask && len(stack) == 0 {
				blocks = append(blocks, span{
					start:   offsets[startLn-1],
					end:     offsets[num],
					content: strings.Join(acc, ""),
					id:      curID,
				})
				inside = false
				acc = nil
			}
		}
	}

	// A block still open at EOF: keep the rest of the file as a pinned,
	// malformed block so nothing is dropped from the output.
	if inside && len(stack) > 0 {
		blocks = append(blocks, span{
			start:     offsets[startLn-1],
			end:       len(text),
			content:   text[offsets[startLn-1]:],
			id:        curID,
			malformed: true,
		})
		warnings = append(warnings, Warning{Line: startLn, ID: curID, Reason: "block not closed"})
	}

	if len(blocks) == 0 {
		return &model.Document{Header: text}, warnings
	}

	doc := &model.Document{Header: text[:blocks[0].start]}
	for i, b := range blocks {
		doc.Questions = append(doc.Questions, buildQuestion(b))
		if i < len(blocks)-1 {
			doc.Separators = append(doc.Separators, text[b.end:blocks[i+1].start])
		}
	}
	doc.Footer = text[blocks[len(blocks)-1].end:]
	return doc, warnings
}

func buildQuestion(b span) model.Question {
	q := model.Question{
		ID:        b.id,
		Raw:       b.content,
		Kind:      model.KindMultipleChoice,
		Malformed: b.malformed,
	}
	if vfPattern.MatchString(b.content) {
		q.Kind = model.KindTrueFalse
		return q
	}
	if b.malformed {
		return q
	}

	m := answerListBlock.FindStringSubmatchIndex(b.content)
	if m == nil {
		return q
	}
	itemRegion := b.content[m[4]:m[5]]
	items := splitItems(itemRegion)
	if len(items) == 0 {
		return q
	}
	q.ListHead = b.content[:m[4]]
	q.ListTail = b.content[m[5]:]
	q.Answers = items
	return q
}

// splitItems cuts the answerlist region at every \ti or \di macro that is
// followed by whitespace or the end of the region. Each item keeps its own
// indentation and the text after the macro, including an optional [label].
func splitItems(s string) []model.AnswerItem {
	locs := itemMacro.FindAllStringSubmatchIndex(s, -1)
	type cut struct {
		seg     int // segment start, including leading indent
		macro   int // start of the macro
		nameEnd int // end of ti/di
		correct bool
	}
	var cuts []cut
	for _, loc := range locs {
		end := loc[1]
		if end < len(s) && !unicode.IsSpace(rune(s[end])) {
			continue
		}
		seg := loc[0]
		for seg > 0 && (s[seg-1] == ' ' || s[seg-1] == '\t') {
			seg--
		}
		cuts = append(cuts, cut{
			seg:     seg,
			macro:   loc[0],
			nameEnd: loc[3],
			correct: s[loc[2]:loc[3]] == "di",
		})
	}

	items := make([]model.AnswerItem, 0, len(cuts))
	for i, c := range cuts {
		next := len(s)
		if i < len(cuts)-1 {
			next = cuts[i+1].seg
		}
		marker := model.MarkerIncorrect
		if c.correct {
			marker = model.MarkerCorrect
		}
		items = append(items, model.AnswerItem{
			Marker:  marker,
			Indent:  s[c.seg:c.macro],
			Content: strings.TrimRight(s[c.nameEnd:next], " \t\n\r"),
		})
	}
	return items
}

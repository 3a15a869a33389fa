package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vigilsat/vigil/client"
	"github.com/vigilsat/vigil/client/quizflow"
)

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type runner struct {
	api *client.Client
	in  io.Reader
	out io.Writer
}

func (r *runner) list(ctx context.Context) error {
	quizzes, err := r.api.ListQuizzes(ctx, "")
	if err != nil {
		return err
	}
	if len(quizzes) == 0 {
		r.printf("No quiz available.\n")
		return nil
	}
	for _, q := range quizzes {
		r.printf("%4d  %-40s %-12s %2d questions, %s\n",
			q.ID, q.Title, q.Difficulty, q.QuestionCount, time.Duration(q.TimeLimit)*time.Second)
	}
	return nil
}

func (r *runner) fact(ctx context.Context, category string) error {
	f, err := r.api.RandomFact(ctx, category)
	if err != nil {
		if client.IsNotFound(err) {
			r.printf("No security fact yet.\n")
			return nil
		}
		return err
	}
	r.printf("%s\n\n%s\n", f.Title, f.Content)
	if f.Source != "" {
		r.printf("(%s)\n", f.Source)
	}
	return nil
}

// take runs a quiz question by question until every question is answered, the input
// ends or the countdown submits it.
func (r *runner) take(ctx context.Context, id int64) error {
	s := quizflow.NewSession(r.api, id)
	def, err := s.Load(ctx)
	if err != nil {
		return err
	}
	r.printf("%s: %d questions, %s to answer, %d%% to pass.\n",
		def.Title, len(def.Questions), def.TimeLimit, def.PassingScore)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, r.in)
questions:
	for i, qn := range def.Questions {
		r.printf("\n[%d/%d] %s\n", i+1, len(def.Questions), qn.Text)
		for j, opt := range qn.Options {
			r.printf("  %s) %s\n", optionLabel(j, len(qn.Options)), opt)
		}
		for {
			r.printf("Answer (%s left): ", s.Remaining().Round(time.Second))
			select {
			case <-s.Done():
				r.printf("\nTime is up.\n")
				break questions
			case line, ok := <-lines:
				if !ok {
					break questions
				}
				opt, valid := parseChoice(line, len(qn.Options))
				if !valid {
					r.printf("Pick %s.\n", choiceHint(len(qn.Options)))
					continue
				}
				if err = s.Answer(i, opt); err != nil {
					// the countdown won the race
					break questions
				}
			}
			break
		}
	}

	out, err := s.Submit(ctx)
	if err != nil {
		return err
	}
	r.report(def, out)
	return nil
}

func (r *runner) report(def quizflow.Definition, out quizflow.Outcome) {
	verdict := "FAILED"
	if out.Result.Passed {
		verdict = "PASSED"
	}
	r.printf("\n%s: %d%% (%d/%d correct) in %s\n",
		verdict, out.Result.Score, out.Result.Correct, out.Result.Total, out.TimeTaken.Round(time.Second))
	if out.AutoSubmit {
		r.printf("Submitted automatically when the time ran out.\n")
	}
	for i, qn := range def.Questions {
		if qn.Explanation != "" {
			r.printf("  %d. %s\n", i+1, qn.Explanation)
		}
	}
}

// optionLabel names option i of n: its letter, or its 1-based number when n outgrows the alphabet.
func optionLabel(i, n int) string {
	if n <= len(letters) {
		return letters[i : i+1]
	}
	return strconv.Itoa(i + 1)
}

func choiceHint(n int) string {
	if n <= len(letters) {
		return "one of " + letters[:n]
	}
	return fmt.Sprintf("a number from 1 to %d", n)
}

// parseChoice accepts a letter or a 1-based number.
func parseChoice(line string, n int) (int, bool) {
	line = strings.TrimSpace(line)
	if len(line) == 1 {
		if i := strings.IndexByte(letters, strings.ToUpper(line)[0]); i >= 0 {
			return i, i < n
		}
	}
	if i, err := strconv.Atoi(line); err == nil && i >= 1 && i <= n {
		return i - 1, true
	}
	return 0, false
}

// readLines feeds the lines of in until it ends or ctx is done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

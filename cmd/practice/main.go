// Command practice runs an interview from the terminal against a running server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/garnizeh/mockinterview/internal/collector"
	"github.com/garnizeh/mockinterview/internal/interview"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/client"
)

const help = `Type your answer; each line is appended to the draft.
  :next          save and go to the next question (submits on the last one)
  :prev          go back one question
  :voice <file>  transcribe an audio file into the draft
  :hint <text>   ask the assistant for help
  :draft         show the current draft
  :clear         clear the draft
  :submit        save, submit and evaluate now
  :quit          leave without submitting`

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("INTERVIEW_SERVER", "http://localhost:8080"), "server base URL")
	email := flag.String("email", os.Getenv("INTERVIEW_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("INTERVIEW_PASSWORD"), "account password")
	signup := flag.Bool("signup", false, "create the account first")
	resume := flag.String("interview", "", "resume an existing interview id")
	role := flag.String("role", "Software Engineer", "role to interview for")
	company := flag.String("company", "", "company (optional)")
	difficulty := flag.String("difficulty", "intermediate", "beginner, intermediate or advanced")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, options{
		server: *server, email: *email, password: *password, signup: *signup,
		resume: *resume, role: *role, company: *company, difficulty: *difficulty,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "practice: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server, email, password string
	signup                  bool
	resume                  string
	role, company           string
	difficulty              string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, in io.Reader, out io.Writer, o options) error {
	if o.email == "" || o.password == "" {
		return errors.New("email and password are required")
	}
	c, err := client.New(o.server, nil)
	if err != nil {
		return err
	}
	if o.signup {
		err = c.Signup(ctx, o.email, o.password, "")
	} else {
		err = c.Signin(ctx, o.email, o.password)
	}
	if err != nil {
		return err
	}

	ivID := o.resume
	if ivID == "" {
		iv, err := c.CreateInterview(ctx, interview.CreateInput{Role: o.role, Company: o.company, Difficulty: o.difficulty})
		if err != nil {
			return err
		}
		ivID = iv.ID
		fmt.Fprintf(out, "Created interview %s (%s)\n", iv.ID, iv.Title)
	}

	fmt.Fprintln(out, "Preparing questions...")
	qs, err := c.GenerateQuestions(ctx, ivID)
	if err != nil {
		return err
	}
	sess, err := collector.New(ivID, qs, c, collector.WithTranscriber(c))
	if err != nil {
		return err
	}
	if o.resume != "" {
		d, err := c.GetInterview(ctx, ivID)
		if err != nil {
			return err
		}
		sess.Restore(d.Responses)
	}

	fmt.Fprintln(out, help)
	showQuestion(out, sess)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()

		ev, done, err := handle(ctx, out, c, sess, ivID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if ev != nil {
			showEvaluation(out, ev)
			return nil
		}
		if done {
			return nil
		}
	}
}

// handle applies one input line. It returns the evaluation once the interview is submitted.
func handle(ctx context.Context, out io.Writer, c *client.Client, sess *collector.Session, ivID, line string) (*models.Evaluation, bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case ":quit":
		return nil, true, nil
	case ":help":
		fmt.Fprintln(out, help)
	case ":draft":
		fmt.Fprintln(out, sess.Draft())
	case ":clear":
		return nil, false, sess.SetDraft("")
	case ":next":
		ev, err := sess.Next(ctx)
		if err != nil || ev != nil {
			return ev, false, err
		}
		showQuestion(out, sess)
	case ":prev":
		moved, err := sess.Prev()
		if err != nil {
			return nil, false, err
		}
		if !moved {
			fmt.Fprintln(out, "already at the first question")
		}
		showQuestion(out, sess)
	case ":submit":
		ev, err := sess.Submit(ctx)
		return ev, false, err
	case ":voice":
		f, err := os.Open(strings.TrimSpace(arg))
		if err != nil {
			return nil, false, err
		}
		defer f.Close()
		if err := sess.StartRecording(); err != nil {
			return nil, false, err
		}
		text, err := sess.FinishRecording(ctx, f)
		if err != nil {
			return nil, false, err
		}
		fmt.Fprintf(out, "transcribed: %s\n", text)
	case ":hint":
		err := c.Assist(ctx, ivID, arg, sess.Current().Text, func(chunk string) error {
			_, err := io.WriteString(out, chunk)
			return err
		})
		fmt.Fprintln(out)
		return nil, false, err
	default:
		if strings.HasPrefix(cmd, ":") {
			return nil, false, fmt.Errorf("unknown command %s, try :help", cmd)
		}
		draft := sess.Draft()
		if draft != "" {
			draft += "\n"
		}
		return nil, false, sess.SetDraft(draft + line)
	}
	return nil, false, nil
}

func showQuestion(out io.Writer, sess *collector.Session) {
	q := sess.Current()
	fmt.Fprintf(out, "\nQuestion %d/%d [%s, %s]\n%s\n", sess.Index()+1, sess.Len(), q.Category, q.Difficulty, q.Text)
	if d := sess.Draft(); d != "" {
		fmt.Fprintf(out, "(saved answer)\n%s\n", d)
	}
}

func showEvaluation(out io.Writer, ev *models.Evaluation) {
	fmt.Fprintf(out, "\nOverall score: %d/100\n", ev.OverallScore)
	fmt.Fprintf(out, "Technical %d, Communication %d, Problem solving %d, Cultural fit %d\n",
		ev.CategoryScores.Technical, ev.CategoryScores.Communication, ev.CategoryScores.ProblemSolving, ev.CategoryScores.CulturalFit)
	list := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s:\n", title)
		for _, s := range items {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
	list("Strengths", ev.Strengths)
	list("Areas for improvement", ev.AreasForImprovement)
	list("Recommendations", ev.Recommendations)
	if ev.DetailedFeedback != "" {
		fmt.Fprintf(out, "\n%s\n", ev.DetailedFeedback)
	}
}

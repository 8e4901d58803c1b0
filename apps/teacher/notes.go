package main

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core/grade"
	"github.com/ecolehub/backend/core/note"
)

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil {
		return 0, grade.ErrInvalidValue
	}
	if err = grade.ValidateValue(v); err != nil {
		return 0, err
	}
	return v, nil
}

func (cli *commandLine) newNote(ctx context.Context, args []string) error {
	cmd := cli.flagSet("note new")
	nn := note.NewNote{SchoolID: cli.opts.schoolID, TeacherID: cli.opts.teacherID}
	cmd.StringVar(&nn.ClassID, "class", "", "The class ID.")
	cmd.StringVar(&nn.SubjectID, "subject", "", "The subject ID.")
	cmd.StringVar(&nn.TermID, "term", "", "The term ID.")
	cmd.StringVar(&nn.Type, "type", grade.TypeQuiz, "The evaluation type: quiz, test, exam, participation, homework or project.")
	cmd.StringVar(&nn.Title, "title", "", "The note title.")
	cmd.IntVar(&nn.Weight, "weight", grade.DefaultWeight, "The grade weight, from 1 to 10.")
	cmd.StringVar(&nn.Description, "description", "", "An optional description.")
	cmd.StringVar(&nn.GradeDate, "date", "", "The evaluation date (YYYY-MM-DD), today by default.")
	values := cmd.StringToString("grade", nil, "A student's grade as STUDENT_ID=VALUE. Repeatable.")
	if err := parse(cmd, args); err != nil {
		return err
	}
	if nn.ClassID == "" || nn.SubjectID == "" || nn.TermID == "" || nn.Title == "" {
		cmd.Usage()
		return errHelp
	}
	if nn.SchoolID == "" || nn.TeacherID == "" {
		return errors.New("the --school and --teacher global flags are required")
	}
	if err := nn.Validate(cli.validate); err != nil {
		return err
	}

	studentIDs := make([]string, 0, len(*values))
	for id := range *values {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)
	details := make([]note.Detail, 0, len(studentIDs))
	for _, id := range studentIDs {
		v, err := parseValue((*values)[id])
		if err != nil {
			return errors.Wrapf(err, "grade of %s", id)
		}
		details = append(details, note.Detail{StudentID: id, Value: v})
	}

	n := nn.Note()
	if err := cli.store.SaveNote(ctx, n, details); err != nil {
		return err
	}
	cli.printf("%s\n", n.ID)
	return nil
}

func (cli *commandLine) showNote(ctx context.Context, id string) error {
	n, err := cli.store.GetNote(ctx, id)
	if err != nil {
		return err
	}
	cli.printf("%s  %s  %s (%s, weight %d)\n", n.ID, n.GradeDate, n.Title, n.Type, n.Weight)
	cli.printf("class %s  subject %s  term %s\n", n.ClassID, n.SubjectID, n.TermID)
	for _, d := range n.Details {
		cli.printf("  %s  %5.2f\n", d.StudentID, d.Value)
	}
	return nil
}

func (cli *commandLine) setGrade(ctx context.Context, noteID, studentID, value string) error {
	v, err := parseValue(value)
	if err != nil {
		return err
	}
	if err = cli.store.UpdateStudentGrade(ctx, noteID, studentID, v); err != nil {
		return err
	}
	cli.printf("%s: %.2f\n", studentID, v)
	return nil
}

func noteState(n note.Note) string {
	switch {
	case n.IsDirty:
		return "draft"
	case n.IsPublished:
		return "published"
	}
	return "synced"
}

func (cli *commandLine) list(ctx context.Context, args []string) error {
	cmd := cli.flagSet("list")
	classID := cmd.String("class", "", "Only the notes of this class.")
	published := cmd.Bool("published", false, "Only the published notes.")
	if err := parse(cmd, args); err != nil {
		return err
	}

	var notes []note.Note
	var err error
	switch {
	case cli.opts.teacherID != "":
		notes, err = cli.store.NotesByTeacher(ctx, cli.opts.teacherID, *classID, *published)
	case *classID != "":
		notes, err = cli.store.NotesByClass(ctx, *classID, *published)
	default:
		return errors.New("the --teacher global flag or --class is required")
	}
	if err != nil {
		return err
	}
	for _, n := range notes {
		details, err := cli.store.GradesByNote(ctx, n.ID)
		if err != nil {
			return err
		}
		cli.printf("%s  %s  %-13s  %-9s  %2d grades  %s\n", n.ID, n.GradeDate, n.Type, noteState(n), len(details), n.Title)
	}
	cli.printf("%d note(s)\n", len(notes))
	return nil
}

package grade

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core/bulk"
)

func statsClassPrefix(classID string) string {
	return "grades:stats:" + classID + ":"
}

func statsKey(classID, termID, subjectID string) string {
	if subjectID == "" {
		subjectID = "all"
	}
	return statsClassPrefix(classID) + termID + ":" + subjectID
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeStatistics groups grades by subject and type. StdDev is the sample
// standard deviation, 0 for a single grade.
func ComputeStatistics(grades []Grade) []Statistics {
	type group struct {
		subjectID, typ string
		values         []float64
	}
	groups := make(map[string]*group)
	var keys []string
	for _, g := range grades {
		k := g.SubjectID + "|" + g.Type
		grp, ok := groups[k]
		if !ok {
			grp = &group{subjectID: g.SubjectID, typ: g.Type}
			groups[k] = grp
			keys = append(keys, k)
		}
		grp.values = append(grp.values, g.Value)
	}
	sort.Strings(keys)

	stats := make([]Statistics, 0, len(keys))
	for _, k := range keys {
		grp := groups[k]
		st := Statistics{SubjectID: grp.subjectID, Type: grp.typ, Count: len(grp.values), Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		for _, v := range grp.values {
			sum += v
			st.Min = math.Min(st.Min, v)
			st.Max = math.Max(st.Max, v)
			if v < 10 {
				st.Below10++
			}
			if v >= 15 {
				st.Above15++
			}
		}
		mean := sum / float64(st.Count)
		if st.Count > 1 {
			var sq float64
			for _, v := range grp.values {
				sq += (v - mean) * (v - mean)
			}
			st.StdDev = round2(math.Sqrt(sq / float64(st.Count-1)))
		}
		st.Average = round2(mean)
		stats = append(stats, st)
	}
	return stats
}

// Statistics summarizes the validated grades of a class for a term, optionally
// for one subject. Results are cached until a grade of the class changes status.
func (svc *service) Statistics(ctx context.Context, schoolID, classID, termID, subjectID string) ([]Statistics, error) {
	if _, err := svc.checkClass(ctx, schoolID, classID); err != nil {
		return nil, err
	}

	key := statsKey(classID, termID, subjectID)
	var stats []Statistics
	if ok, err := svc.cache.Get(ctx, key, &stats); err != nil {
		svc.logger.Warn(fmt.Sprintf("reading cached grade statistics: %v", err), err)
	} else if ok {
		return stats, nil
	}

	grades, err := svc.repo.QueryGrades(ctx, &ListFilter{
		SchoolID:  schoolID,
		ClassID:   classID,
		TermID:    termID,
		SubjectID: subjectID,
		Status:    StatusValidated,
	})
	if err != nil {
		return nil, err
	}
	stats = ComputeStatistics(grades)
	if err = svc.cache.Set(ctx, key, stats); err != nil {
		svc.logger.Warn(fmt.Sprintf("caching grade statistics: %v", err), err)
	}
	return stats, nil
}

// Average evaluates the configured formula over a student's grades.
// The formula sees weightedSum, totalWeight, count, min and max.
func (svc *service) Average(grades []Grade) (float64, error) {
	var weightedSum float64
	var totalWeight int
	min, max := math.Inf(1), math.Inf(-1)
	for _, g := range grades {
		weightedSum += g.Value * float64(g.Weight)
		totalWeight += g.Weight
		min = math.Min(min, g.Value)
		max = math.Max(max, g.Value)
	}
	if len(grades) == 0 {
		min, max = 0, 0
	}

	res, err := svc.formula.Evaluate(map[string]interface{}{
		"weightedSum": weightedSum,
		"totalWeight": float64(totalWeight),
		"count":       float64(len(grades)),
		"min":         min,
		"max":         max,
	})
	if err != nil {
		return 0, errors.Wrap(err, "evaluating average formula")
	}
	avg, ok := res.(float64)
	if !ok {
		return 0, errors.Errorf("average formula returned %T", res)
	}
	return round2(avg), nil
}

// Rank orders averages best first. Equal averages share a rank and the
// following rank is skipped (1, 2, 2, 4).
func Rank(avgs []StudentAverage) {
	sort.SliceStable(avgs, func(i, j int) bool {
		if avgs[i].Average != avgs[j].Average {
			return avgs[i].Average > avgs[j].Average
		}
		return avgs[i].StudentID < avgs[j].StudentID
	})
	for i := range avgs {
		if i > 0 && avgs[i].Average == avgs[i-1].Average {
			avgs[i].Rank = avgs[i-1].Rank
		} else {
			avgs[i].Rank = i + 1
		}
	}
}

func (svc *service) TermAverages(ctx context.Context, schoolID, classID, termID string) ([]StudentAverage, error) {
	if _, err := svc.checkClass(ctx, schoolID, classID); err != nil {
		return nil, err
	}
	grades, err := svc.repo.QueryGrades(ctx, &ListFilter{SchoolID: schoolID, ClassID: classID, TermID: termID, Status: StatusValidated})
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string][]Grade)
	for _, g := range grades {
		byStudent[g.StudentID] = append(byStudent[g.StudentID], g)
	}
	avgs := make([]StudentAverage, 0, len(byStudent))
	for studentID, sg := range byStudent {
		avg, err := svc.Average(sg)
		if err != nil {
			return nil, err
		}
		var weight int
		for _, g := range sg {
			weight += g.Weight
		}
		avgs = append(avgs, StudentAverage{StudentID: studentID, Average: avg, TotalWeight: weight, GradeCount: len(sg)})
	}
	Rank(avgs)
	return avgs, nil
}

type evaluation struct {
	date, typ, description string
}

func (e evaluation) label() string {
	if e.description != "" {
		return fmt.Sprintf("%s %s (%s)", e.date, e.typ, e.description)
	}
	return e.date + " " + e.typ
}

// ExportGradebook writes the class gradebook of a subject and term: one row per
// enrolled student, one column per evaluation, then the student's average.
func (svc *service) ExportGradebook(ctx context.Context, w io.Writer, schoolID, classID, subjectID, termID string) error {
	if _, err := svc.checkClass(ctx, schoolID, classID); err != nil {
		return err
	}
	students, err := svc.classes.Students(ctx, schoolID, classID)
	if err != nil {
		return err
	}
	grades, err := svc.repo.QueryGrades(ctx, &ListFilter{SchoolID: schoolID, ClassID: classID, SubjectID: subjectID, TermID: termID})
	if err != nil {
		return err
	}

	var evals []evaluation
	seen := make(map[evaluation]bool)
	cells := make(map[string]map[evaluation]float64)
	byStudent := make(map[string][]Grade)
	for _, g := range grades {
		ev := evaluation{date: g.GradeDate, typ: g.Type, description: g.Description}
		if !seen[ev] {
			seen[ev] = true
			evals = append(evals, ev)
		}
		if cells[g.StudentID] == nil {
			cells[g.StudentID] = make(map[evaluation]float64)
		}
		cells[g.StudentID][ev] = g.Value
		byStudent[g.StudentID] = append(byStudent[g.StudentID], g)
	}
	sort.Slice(evals, func(i, j int) bool {
		if evals[i].date != evals[j].date {
			return evals[i].date < evals[j].date
		}
		return evals[i].label() < evals[j].label()
	})
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName != students[j].LastName {
			return students[i].LastName < students[j].LastName
		}
		return students[i].FirstName < students[j].FirstName
	})

	header := []string{"Matricule", "Last name", "First name"}
	for _, ev := range evals {
		header = append(header, ev.label())
	}
	header = append(header, "Average")

	rows := make([][]interface{}, 0, len(students))
	for _, stu := range students {
		row := []interface{}{stu.Matricule, stu.LastName, stu.FirstName}
		for _, ev := range evals {
			if v, ok := cells[stu.StudentID][ev]; ok {
				row = append(row, v)
			} else {
				row = append(row, "")
			}
		}
		if sg := byStudent[stu.StudentID]; len(sg) > 0 {
			avg, err := svc.Average(sg)
			if err != nil {
				return err
			}
			row = append(row, avg)
		} else {
			row = append(row, "")
		}
		rows = append(rows, row)
	}
	return bulk.WriteXLSX(w, "Gradebook", header, rows)
}

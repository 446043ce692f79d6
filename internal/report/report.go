// Package report writes analysis run outputs as CSV files plus an XLSX
// summary workbook. Sections whose upstream stage produced nothing are
// skipped rather than written empty.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/appsight/insights-cli/internal/model"
)

// RunData holds everything a run produced that is worth exporting.
type RunData struct {
	App             model.App
	Reviews         []model.Review
	Cleaned         []model.CleanedReview
	Sentiments      []model.SentimentResult
	Topics          []model.Topic
	Assignments     []model.ClusterAssignment
	Labels          []model.ClusterLabel
	Categorized     []model.CategorizedReview
	Metrics         []model.Metric
	Findings        []model.Finding
	Recommendations []model.Recommendation
	Stages          []model.StageResult
}

// WriteRun writes all available sections under dir/<package_id>/ and returns
// the paths written.
func WriteRun(dir string, data RunData) ([]string, error) {
	if dir == "" {
		dir = "reports"
	}
	outDir := filepath.Join(dir, data.App.PackageID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "report: create output dir")
	}

	var written []string
	add := func(path string, err error) error {
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if len(data.Reviews) > 0 {
		if err := add(writeReviewsCSV(outDir, data.Reviews)); err != nil {
			return written, err
		}
	}
	if len(data.Cleaned) > 0 {
		if err := add(writeCleanedCSV(outDir, data.Cleaned)); err != nil {
			return written, err
		}
	}
	if len(data.Sentiments) > 0 {
		if err := add(writeSentimentCSV(outDir, data.Sentiments)); err != nil {
			return written, err
		}
	}
	if len(data.Topics) > 0 {
		if err := add(writeTopicsCSV(outDir, data.Topics)); err != nil {
			return written, err
		}
	}
	if len(data.Assignments) > 0 {
		if err := add(writeClustersCSV(outDir, data.Assignments, data.Labels)); err != nil {
			return written, err
		}
	}
	if len(data.Categorized) > 0 {
		if err := add(writeCategoriesCSV(outDir, data.Categorized)); err != nil {
			return written, err
		}
	}
	if len(data.Metrics) > 0 {
		if err := add(writeMetricsCSV(outDir, data.Metrics)); err != nil {
			return written, err
		}
	}

	if err := add(writeSummaryXLSX(outDir, data)); err != nil {
		return written, err
	}
	return written, nil
}

func writeCSV(dir, name string, header []string, rows [][]string) (string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "report: create %s", name)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return "", eris.Wrapf(err, "report: write %s header", name)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", eris.Wrapf(err, "report: write %s row", name)
		}
	}
	return path, nil
}

func writeReviewsCSV(dir string, reviews []model.Review) (string, error) {
	rows := make([][]string, 0, len(reviews))
	for _, r := range reviews {
		rows = append(rows, []string{
			r.ID,
			strconv.Itoa(r.Rating),
			r.Locale,
			r.Timestamp.Format(time.RFC3339),
			r.Text,
		})
	}
	return writeCSV(dir, "reviews.csv", []string{"id", "rating", "locale", "timestamp", "text"}, rows)
}

func writeCleanedCSV(dir string, cleaned []model.CleanedReview) (string, error) {
	rows := make([][]string, 0, len(cleaned))
	for _, c := range cleaned {
		rows = append(rows, []string{
			c.ReviewID,
			c.Text,
			strings.Join(c.Tokens, " "),
		})
	}
	return writeCSV(dir, "cleaned.csv", []string{"review_id", "text", "tokens"}, rows)
}

func writeSentimentCSV(dir string, results []model.SentimentResult) (string, error) {
	rows := make([][]string, 0, len(results))
	for _, s := range results {
		rows = append(rows, []string{
			s.ReviewID,
			string(s.Label),
			strconv.FormatFloat(s.Score, 'f', 4, 64),
		})
	}
	return writeCSV(dir, "sentiment.csv", []string{"review_id", "label", "score"}, rows)
}

func writeTopicsCSV(dir string, topics []model.Topic) (string, error) {
	rows := make([][]string, 0, len(topics))
	for _, t := range topics {
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			strings.Join(t.Terms, " "),
		})
	}
	return writeCSV(dir, "topics.csv", []string{"topic", "terms"}, rows)
}

func writeClustersCSV(dir string, assignments []model.ClusterAssignment, labels []model.ClusterLabel) (string, error) {
	names := make(map[int]string, len(labels))
	for _, l := range labels {
		names[l.Cluster] = l.Name
	}

	rows := make([][]string, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, []string{
			a.ReviewID,
			strconv.Itoa(a.Cluster),
			names[a.Cluster],
			strconv.FormatFloat(a.Distance, 'f', 4, 64),
		})
	}
	return writeCSV(dir, "clusters.csv", []string{"review_id", "cluster", "cluster_name", "distance"}, rows)
}

func writeCategoriesCSV(dir string, categorized []model.CategorizedReview) (string, error) {
	rows := make([][]string, 0, len(categorized))
	for _, c := range categorized {
		rows = append(rows, []string{c.ReviewID, c.Category})
	}
	return writeCSV(dir, "categories.csv", []string{"review_id", "category"}, rows)
}

func writeMetricsCSV(dir string, metrics []model.Metric) (string, error) {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{
			m.Name,
			string(m.Kind),
			strconv.FormatFloat(m.Value, 'f', -1, 64),
			m.Label,
			strings.Join(m.Provenance, " "),
		})
	}
	return writeCSV(dir, "metrics.csv", []string{"name", "kind", "value", "label", "provenance"}, rows)
}

// writeSummaryXLSX writes one workbook with a sheet per available section.
func writeSummaryXLSX(dir string, data RunData) (string, error) {
	f := xlsx.NewFile()

	if len(data.Metrics) > 0 {
		sheet, err := f.AddSheet("Metrics")
		if err != nil {
			return "", eris.Wrap(err, "report: add metrics sheet")
		}
		addRow(sheet, "Name", "Kind", "Value", "Label")
		for _, m := range data.Metrics {
			addRow(sheet, m.Name, string(m.Kind), strconv.FormatFloat(m.Value, 'f', -1, 64), m.Label)
		}
	}

	if len(data.Findings) > 0 {
		sheet, err := f.AddSheet("Findings")
		if err != nil {
			return "", eris.Wrap(err, "report: add findings sheet")
		}
		addRow(sheet, "Rank", "Priority", "Statement", "Metrics")
		for _, fd := range data.Findings {
			addRow(sheet,
				strconv.Itoa(fd.Rank),
				strconv.FormatFloat(fd.Priority, 'f', 2, 64),
				fd.Statement,
				strings.Join(fd.Metrics, " "),
			)
		}
	}

	if len(data.Recommendations) > 0 {
		sheet, err := f.AddSheet("Recommendations")
		if err != nil {
			return "", eris.Wrap(err, "report: add recommendations sheet")
		}
		addRow(sheet, "Rank", "Priority", "Statement", "Evidence")
		for _, r := range data.Recommendations {
			addRow(sheet,
				strconv.Itoa(r.Rank),
				strconv.FormatFloat(r.Priority, 'f', 2, 64),
				r.Statement,
				strings.Join(r.Evidence, " "),
			)
		}
	}

	if len(data.Stages) > 0 {
		sheet, err := f.AddSheet("Stages")
		if err != nil {
			return "", eris.Wrap(err, "report: add stages sheet")
		}
		addRow(sheet, "Stage", "Status", "Duration (ms)", "Error")
		for _, s := range data.Stages {
			addRow(sheet, s.Stage, string(s.Status), fmt.Sprintf("%d", s.Duration), s.Error)
		}
	}

	if len(f.Sheets) == 0 {
		sheet, err := f.AddSheet("Summary")
		if err != nil {
			return "", eris.Wrap(err, "report: add summary sheet")
		}
		addRow(sheet, "Package", data.App.PackageID)
		addRow(sheet, "Reviews", strconv.Itoa(len(data.Reviews)))
	}

	path := filepath.Join(dir, "summary.xlsx")
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "report: save summary workbook")
	}
	return path, nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		cell.SetString(v)
	}
}

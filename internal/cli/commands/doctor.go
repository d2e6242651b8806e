package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/cli/config"
	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/leapstack-labs/leaptrack/internal/macro"
	"github.com/leapstack-labs/leaptrack/internal/runctx"
	"github.com/leapstack-labs/leaptrack/internal/state"
	"github.com/spf13/cobra"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
	statusSkip  = "skip"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check run directories and the artifact index",
		Long: `Verify the output tree and the artifact index.

The doctor command recomputes every artifact's content hash and compares it
with the hash in its file name, looks for temp files left by interrupted
saves, cross-checks the index against the files on disk and, when a
warehouse is configured, tries to connect to it.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  leaptrack doctor
  leaptrack doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         DoctorSummary `json:"summary"`
	HealthChecks    []HealthCheck `json:"health_checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// DoctorSummary counts what was found on disk and in the index.
type DoctorSummary struct {
	Runs      int `json:"runs"`
	Artifacts int `json:"artifacts"`
	Indexed   int `json:"indexed"`
	TempFiles int `json:"temp_files"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"`
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func (h *HealthCheck) issue(status, detail string) {
	h.IssueCount++
	h.Details = append(h.Details, detail)
	if h.Status != statusError {
		h.Status = status
	}
}

// diskArtifact is an artifact file found under a run directory.
type diskArtifact struct {
	Path   string
	Record artifact.Record
}

// outputTree is everything found under the output root.
type outputTree struct {
	Runs      []string
	Artifacts []diskArtifact
	TempFiles []string
}

var runDirPattern = regexp.MustCompile(`^\d{8}_\d{6}$`)

func runDoctor(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContextWithoutServices(cmd)
	cfg := cmdCtx.Cfg

	tree, err := scanOutputTree(cfg.Output.RootDir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", cfg.Output.RootDir, err)
	}

	checks := []*HealthCheck{
		checkConfig(cfg),
		checkMacros(cfg.MacrosDir),
		checkOutputRoot(cfg.Output.RootDir, tree),
	}

	hashes, err := checkHashes(ctx, tree.Artifacts)
	if err != nil {
		return err
	}
	checks = append(checks, hashes, checkTempFiles(tree))

	indexChecks, indexed := checkIndex(ctx, cmdCtx, tree)
	checks = append(checks, indexChecks...)
	checks = append(checks, checkWarehouse(ctx, cmdCtx))

	out := buildDoctorOutput(checks, DoctorSummary{
		Runs:      len(tree.Runs),
		Artifacts: len(tree.Artifacts),
		Indexed:   indexed,
		TempFiles: len(tree.TempFiles),
	})

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// scanOutputTree walks every run directory under root. A missing root is
// an empty tree.
func scanOutputTree(root string) (*outputTree, error) {
	tree := &outputTree{}
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return tree, nil
	}
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if !e.IsDir() || !runDirPattern.MatchString(e.Name()) {
			continue
		}
		runDir := filepath.Join(root, e.Name())
		tree.Runs = append(tree.Runs, runDir)

		err := filepath.WalkDir(runDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == runctx.ConfigDir && filepath.Dir(path) == runDir {
					return filepath.SkipDir
				}
				return nil
			}
			if rec, perr := artifact.ParseFileName(d.Name()); perr == nil {
				tree.Artifacts = append(tree.Artifacts, diskArtifact{Path: path, Record: rec})
			} else if strings.Contains(d.Name(), "_temp.") {
				tree.TempFiles = append(tree.TempFiles, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func checkConfig(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{ID: "CF01", Name: "Configuration file", Group: "config", Status: statusPass}
	if len(cfg.Files) == 0 {
		check.issue(statusWarn, "no config.yaml or dataops.yaml found; using defaults")
	}
	return check
}

func checkMacros(dir string) *HealthCheck {
	check := &HealthCheck{ID: "CF02", Name: "Macros load", Group: "config", Status: statusPass}
	if _, err := macro.LoadAndRegister(dir); err != nil {
		check.issue(statusError, err.Error())
	}
	return check
}

func checkOutputRoot(root string, tree *outputTree) *HealthCheck {
	check := &HealthCheck{ID: "OU01", Name: "Output root", Group: "output", Status: statusPass}
	if _, err := os.Stat(root); err != nil {
		check.issue(statusWarn, fmt.Sprintf("%s does not exist yet", root))
		return check
	}
	if len(tree.Runs) == 0 {
		check.issue(statusWarn, fmt.Sprintf("no run directories under %s", root))
	}
	return check
}

// checkHashes rehashes every artifact concurrently and reports files whose
// content no longer matches the hash in their name.
func checkHashes(ctx context.Context, files []diskArtifact) (*HealthCheck, error) {
	check := &HealthCheck{ID: "OU02", Name: "Content hashes", Group: "output", Status: statusPass}

	mismatches := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			got, err := artifact.HashFile(f.Path)
			if err != nil {
				return fmt.Errorf("failed to hash %s: %w", f.Path, err)
			}
			if got != f.Record.Hash {
				mismatches[i] = fmt.Sprintf("%s: content hash is %s", f.Path, got)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, m := range mismatches {
		if m != "" {
			check.issue(statusError, m)
		}
	}
	return check, nil
}

func checkTempFiles(tree *outputTree) *HealthCheck {
	check := &HealthCheck{ID: "OU03", Name: "Interrupted saves", Group: "output", Status: statusPass}
	for _, path := range tree.TempFiles {
		check.issue(statusWarn, path)
	}
	return check
}

// checkIndex cross-checks the artifact index with the files on disk and
// returns the number of indexed artifacts.
func checkIndex(ctx context.Context, cmdCtx *CommandContext, tree *outputTree) ([]*HealthCheck, int) {
	reachable := &HealthCheck{ID: "IX01", Name: "Index reachable", Group: "index", Status: statusPass}
	missing := &HealthCheck{ID: "IX02", Name: "Indexed files exist", Group: "index", Status: statusSkip}
	unindexed := &HealthCheck{ID: "IX03", Name: "Files are indexed", Group: "index", Status: statusSkip}
	checks := []*HealthCheck{reachable, missing, unindexed}

	index, err := requireIndex(ctx, cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		reachable.issue(statusWarn, err.Error())
		return checks, 0
	}
	defer func() { _ = index.Close() }()

	records, err := index.ListArtifacts(ctx, state.ArtifactFilter{})
	if err != nil {
		reachable.issue(statusError, err.Error())
		return checks, 0
	}

	missing.Status, unindexed.Status = statusPass, statusPass
	known := make(map[string]bool, len(records))
	for _, a := range records {
		known[cleanPath(a.Path)] = true
		if _, err := os.Stat(a.Path); err != nil {
			missing.issue(statusWarn, a.Path)
		}
	}
	for _, f := range tree.Artifacts {
		if !known[cleanPath(f.Path)] {
			unindexed.issue(statusWarn, f.Path)
		}
	}
	return checks, len(records)
}

func checkWarehouse(ctx context.Context, cmdCtx *CommandContext) *HealthCheck {
	check := &HealthCheck{ID: "WH01", Name: "Warehouse connection", Group: "warehouse", Status: statusPass}
	if cmdCtx.Cfg.Database == nil {
		check.Status = statusSkip
		check.Details = []string{"no database configured"}
		return check
	}

	db, err := openAdapter(ctx, cmdCtx)
	if err != nil {
		check.issue(statusError, err.Error())
		return check
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(ctx); err != nil {
		check.issue(statusError, err.Error())
	}
	return check
}

func cleanPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func buildDoctorOutput(checks []*HealthCheck, summary DoctorSummary) *DoctorOutput {
	out := &DoctorOutput{Summary: summary}
	for _, c := range checks {
		out.HealthChecks = append(out.HealthChecks, *c)
		out.IssueCount += c.IssueCount
	}

	sort.SliceStable(out.HealthChecks, func(i, j int) bool {
		return groupOrder(out.HealthChecks[i].Group) < groupOrder(out.HealthChecks[j].Group)
	})

	out.Score = calculateHealthScore(out.HealthChecks, summary.Artifacts)
	out.Recommendations = generateRecommendations(out.HealthChecks)
	return out
}

func groupOrder(group string) int {
	switch group {
	case "config":
		return 0
	case "output":
		return 1
	case "index":
		return 2
	default:
		return 3
	}
}

// calculateHealthScore computes a score from 0 to 100. Errors cost twice
// as much as warnings and each issue weighs less in larger output trees.
func calculateHealthScore(checks []HealthCheck, artifactCount int) int {
	score := 100.0

	basePenalty := 5.0
	if artifactCount > 20 {
		basePenalty = 3.0
	}
	if artifactCount > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	return int(score)
}

func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		if rec := getRecommendation(check.ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Create config.yaml in the project root to pin the output root and index path"
	case "CF02":
		return "Fix the macro file; derive fails until every macro loads"
	case "OU01":
		return "Save an artifact to create the first run directory"
	case "OU02":
		return "Treat artifacts with mismatched hashes as modified; regenerate them from their inputs"
	case "OU03":
		return "Delete leftover *_temp.* files from interrupted saves"
	case "IX01":
		return "Save an artifact to create the index, or check state_path"
	case "IX02":
		return "Indexed files were moved or deleted; the index only records saves"
	case "IX03":
		return "Some artifacts were saved while the index was unavailable"
	case "WH01":
		return "Check the database section of the configuration"
	default:
		return ""
	}
}

func statusLabel(status string) string {
	return strings.ToUpper(status)
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("leaptrack Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Summary"))
	r.Printf("   Runs: %d | Artifacts: %d | Indexed: %d | Temp files: %d\n",
		out.Summary.Runs, out.Summary.Artifacts, out.Summary.Indexed, out.Summary.TempFiles)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.Error.Render("✗")
		case statusSkip:
			icon = styles.Muted.Render("-")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.ID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# leaptrack Health Report")
	r.Println("")

	r.Println("## Summary")
	r.Println("")
	r.Printf("- **Runs**: %d\n", out.Summary.Runs)
	r.Printf("- **Artifacts**: %d\n", out.Summary.Artifacts)
	r.Printf("- **Indexed**: %d\n", out.Summary.Indexed)
	r.Printf("- **Temp files**: %d\n", out.Summary.TempFiles)
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", statusLabel(check.Status), check.ID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
	return nil
}

package commands

import (
	"strings"

	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/leapstack-labs/leaptrack/internal/macro"
	"github.com/spf13/cobra"
)

// NewMacrosCommand creates the macros command.
func NewMacrosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "macros",
		Short: "List macro functions available to derive",
		Long: `List the public functions and constants defined in the macros directory. Each
<name>.star file is a namespace; call its functions from derive expressions
as <name>.<function>(...). Files are parsed, not executed.`,
		Example: `  leaptrack macros
  leaptrack macros -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMacros(cmd)
		},
	}
}

func runMacros(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutServices(cmd)
	namespaces, err := macro.ParseDir(cmdCtx.Cfg.MacrosDir)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(namespaces)
	}

	if len(namespaces) == 0 {
		r.Println(r.Muted("No macros found in " + cmdCtx.Cfg.MacrosDir))
		return nil
	}

	var rows [][]string
	for _, ns := range namespaces {
		for _, fn := range ns.Functions {
			doc, _, _ := strings.Cut(fn.Docstring, "\n")
			rows = append(rows, []string{ns.Name + "." + fn.Signature(), doc})
		}
		for _, c := range ns.Constants {
			rows = append(rows, []string{ns.Name + "." + c, r.Muted("constant")})
		}
	}
	return r.Table([]string{"Function", "Description"}, rows)
}

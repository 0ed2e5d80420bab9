package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DialectsOptions holds flags for the dialects command.
type DialectsOptions struct {
	*RootOptions
	Profiles string
}

// NewDialectsCommand creates the dialects command, which lists the engine
// detection table in effect.
func NewDialectsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DialectsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "dialects",
		Short:         "List engine-to-dialect detection profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDialects(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Profiles, "profiles", "", "YAML dialect profile file")

	return cmd
}

func runDialects(opts *DialectsOptions, out io.Writer) error {
	profiles, err := loadProfiles(opts.Profiles)
	if err != nil {
		return fail(out, opts.Format, err)
	}

	engines := make([]string, 0, len(profiles))
	for engine := range profiles {
		engines = append(engines, engine)
	}
	coll := collate.New(language.Und)
	sort.Slice(engines, func(i, j int) bool {
		return coll.CompareString(engines[i], engines[j]) < 0
	})

	if opts.Format == "json" {
		table := make(map[string]string, len(profiles))
		for engine, d := range profiles {
			table[engine] = d.String()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}

	for _, engine := range engines {
		fmt.Fprintf(out, "%s\t%s\n", engine, profiles[engine])
	}
	fmt.Fprintln(out, "(unlisted engines detect as generic)")
	return nil
}

package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/parser"
	"github.com/hexgate/hexgate/internal/server"
	"github.com/hexgate/hexgate/internal/service"
	"github.com/hexgate/hexgate/internal/utils/container"
)

func newRoutesCommand(st *State) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Describe the HTTP routes and query grammar",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			skipConfig: "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			planner, err := container.NewPlanner("postgres")
			if err != nil {
				return err
			}
			doc := routesMarkdown(server.NewServer(server.Deps{Gateway: planner}, server.Options{}).Routes())
			if plain {
				_, err := fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			}
			return st.printer(cmd).Markdown(doc)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print raw markdown")
	return cmd
}

func routesMarkdown(routes []server.RouteInfo) string {
	var b strings.Builder
	b.WriteString("# Routes\n\n")
	b.WriteString("| method | path | purpose |\n|---|---|---|\n")
	for _, r := range routes {
		fmt.Fprintf(&b, "| %s | `%s` | %s |\n", strings.Join(r.Methods, ", "), r.Path, r.Purpose)
	}

	b.WriteString("\n# Query parameters\n\n")
	fmt.Fprintf(&b, "- `%s=N`, `%s=N`: page through results\n", parser.KeyLimit, parser.KeyOffset)
	fmt.Fprintf(&b, "- `%s=a,b`: project columns\n", parser.KeyColumns)
	fmt.Fprintf(&b, "- `%s=true`, `%s=a,b`: remove duplicate rows\n", parser.KeyDistinct, parser.KeyDistinctOn)
	fmt.Fprintf(&b, "- `%s=a,-b,c.nullsfirst`: order results\n", parser.KeySort)
	b.WriteString("- `<column>=<op>.<value>`: filter rows; repeated filters are AND-combined\n")
	fmt.Fprintf(&b, "- `%s=true` or `%s: true`: update or delete without filters, when enabled\n",
		service.KeyAllowUnfiltered, server.AllowUnfilteredHeader)

	b.WriteString("\n# Operators\n\n")
	tokens := make([]string, 0, len(domain.Operators))
	for token := range domain.Operators {
		tokens = append(tokens, "`"+token+"`")
	}
	sort.Strings(tokens)
	b.WriteString(strings.Join(tokens, ", "))
	b.WriteString("\n\n`in` takes a parenthesized list: `id=in.(1,2,3)`.\n")
	return b.String()
}

package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hexgate/hexgate/internal/server"
	"github.com/hexgate/hexgate/internal/utils/container"
)

type compileOptions struct {
	body            string
	bodyFile        string
	allowUnfiltered bool
	json            bool
}

func newCompileCommand(st *State) *cobra.Command {
	var opts compileOptions

	cmd := &cobra.Command{
		Use:   "compile METHOD TARGET",
		Short: "Print the SQL a request compiles to",
		Long: `Compile a gateway request without touching a database.

TARGET is the request path and query, for example:

  hexgate compile GET '/public/users?age=gte.18&sort=-age&limit=10'
  hexgate compile POST /public/users --body '[{"name":"ann"}]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, st, strings.ToUpper(args[0]), args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.body, "body", "", "JSON request body")
	cmd.Flags().StringVar(&opts.bodyFile, "body-file", "", "read the JSON request body from a file")
	cmd.Flags().BoolVar(&opts.allowUnfiltered, "allow-unfiltered", false, "allow update and delete without filters")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print statements as JSON")
	cmd.MarkFlagsMutuallyExclusive("body", "body-file")

	return cmd
}

type compiledOutput struct {
	Operation string        `json:"operation"`
	Resource  string        `json:"resource"`
	SQL       string        `json:"sql"`
	Params    []interface{} `json:"params"`
	Returns   bool          `json:"returns"`
}

func runCompile(cmd *cobra.Command, st *State, method, target string, opts compileOptions) error {
	planner, err := container.NewPlanner(st.Config.Database.Provider)
	if err != nil {
		return err
	}

	body := []byte(opts.body)
	if opts.bodyFile != "" {
		if body, err = afero.ReadFile(st.Fs, opts.bodyFile); err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
	}

	srv := server.NewServer(server.Deps{Gateway: planner}, server.Options{})
	req, err := srv.RequestFor(method, target, body)
	if err != nil {
		return err
	}
	req.AllowUnfiltered = opts.allowUnfiltered

	plan, err := planner.Plan(req)
	if err != nil {
		return err
	}

	if opts.json {
		out := make([]compiledOutput, len(plan.Statements))
		for i, stmt := range plan.Statements {
			out[i] = compiledOutput{
				Operation: plan.Operation.String(),
				Resource:  plan.Address.String(),
				SQL:       stmt.SQL,
				Params:    stmt.Params,
				Returns:   stmt.Returns,
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	p := st.printer(cmd)
	p.KeyValue([][2]string{
		{"dialect", string(planner.Compiler().Dialect())},
		{"operation", plan.Operation.String()},
		{"resource", plan.Address.String()},
		{"transaction", fmt.Sprintf("%t", plan.Transactional())},
	})
	for i, stmt := range plan.Statements {
		p.Statement(i+1, stmt.SQL, stmt.Params)
	}
	return nil
}

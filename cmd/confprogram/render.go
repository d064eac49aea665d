package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"confprogram/internal/render"
)

var (
	renderFormat  string
	renderPending bool
	renderOutput  string
)

var renderCmd = &cobra.Command{
	Use:   "render <domain>",
	Short: "Render one program to stdout or a file",
	Long: `Render the program of a site once, bypassing the render cache.

Examples:
  confprogram render 2024.ponycon.test
  confprogram render 2024.ponycon.test --format ics -o program.ics
  confprogram render 2024.ponycon.test --pending`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "html", "Output format: html, xml or ics")
	renderCmd.Flags().BoolVar(&renderPending, "pending", false, "Include talks not decided yet")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	f, err := render.ParseFormat(renderFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := rootContext(cmd)
	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.renderer.Render(ctx, args[0], f, renderPending)
	if err != nil {
		return err
	}

	if renderOutput == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(renderOutput, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", renderOutput, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(out), renderOutput)
	return nil
}

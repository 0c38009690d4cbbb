package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/pksim/sim"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect, export and validate model cards",
	Long:  "Work with YAML model cards and the built-in presets. Cards are written to stdout for piping.",
}

// --- pksim model list ---

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in model cards",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range sim.PresetNames() {
			fmt.Println(name)
		}
	},
}

// --- pksim model export ---

var modelExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a built-in model card as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := sim.Preset(presetName)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := writeCard(os.Stdout, spec); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// --- pksim model validate ---

var modelValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load a model card, validate it and resolve its estimates",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		spec := loadCard(modelPath, presetName)
		if err := spec.Validate(); err != nil {
			logrus.Fatalf("Invalid model card %q: %v", spec.Run, err)
		}
		est, err := spec.ResolveEstimates()
		if err != nil {
			logrus.Fatalf("Could not resolve estimates: %v", err)
		}
		if est.Table != "" {
			logrus.Infof("Estimates from %s (%s): OFV=%g", spec.ExtPath(), est.Table, est.OFV)
		}
		logrus.Infof("Model card %q is valid: THETA=%v, observation=%s, capture=%v",
			spec.Run, est.Theta, spec.Observation, spec.Capture)
		fmt.Printf("%s: ok\n", spec.Run)
	},
}

// loadCard returns the card from path, or the named preset when path is empty.
func loadCard(path, preset string) *sim.ModelSpec {
	if path != "" {
		spec, err := sim.LoadModelSpec(path)
		if err != nil {
			logrus.Fatalf("Failed to load model card %s: %v", path, err)
		}
		return spec
	}
	spec, err := sim.Preset(preset)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return spec
}

// writeCard marshals a model card to YAML.
func writeCard(w io.Writer, spec *sim.ModelSpec) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("YAML marshal failed: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func init() {
	modelExportCmd.Flags().StringVar(&presetName, "preset", "", "Built-in model card (r2, r2-cp)")
	_ = modelExportCmd.MarkFlagRequired("preset")

	modelValidateCmd.Flags().StringVar(&modelPath, "model", "", "Path to YAML model card")
	modelValidateCmd.Flags().StringVar(&presetName, "preset", "", "Built-in model card (r2, r2-cp)")
	modelValidateCmd.MarkFlagsMutuallyExclusive("model", "preset")
	modelValidateCmd.MarkFlagsOneRequired("model", "preset")

	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelExportCmd)
	modelCmd.AddCommand(modelValidateCmd)

	rootCmd.AddCommand(modelCmd)
}

package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/promo-cli/internal/model"
)

var (
	genName       string
	genBody       string
	genBodyFile   string
	genKeywords   []string
	genLanguage   string
	genVariant    string
	genRegenerate bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate marketing content for a single product",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		body := genBody
		if genBodyFile != "" {
			data, err := os.ReadFile(genBodyFile)
			if err != nil {
				return eris.Wrap(err, "read body file")
			}
			body = string(data)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.GenerateRequest{
			ProductName: genName,
			ContentBody: body,
			Keywords:    genKeywords,
			Language:    genLanguage,
			Variant:     genVariant,
			Regenerate:  genRegenerate,
		}

		result, err := env.Pipeline.Run(ctx, req)
		if err != nil && result == nil {
			return eris.Wrap(err, "pipeline run")
		}
		if err != nil {
			zap.L().Warn("run finished without completed stages", zap.Error(err))
		}

		score := 0
		if result.Score != nil {
			score = result.Score.FinalScore
		}
		zap.L().Info("generation complete",
			zap.String("run_id", result.RunID),
			zap.String("status", string(result.Status)),
			zap.Int("score", score),
			zap.Bool("cache_hit", result.CacheHit),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genName, "name", "", "product name (required)")
	generateCmd.Flags().StringVar(&genBody, "body", "", "raw product content")
	generateCmd.Flags().StringVar(&genBodyFile, "body-file", "", "read raw product content from a file")
	generateCmd.Flags().StringSliceVar(&genKeywords, "keywords", nil, "seed keywords")
	generateCmd.Flags().StringVar(&genLanguage, "language", "en", "output language code")
	generateCmd.Flags().StringVar(&genVariant, "variant", "", "pipeline variant tag")
	generateCmd.Flags().BoolVar(&genRegenerate, "regenerate", false, "bypass the content cache")
	_ = generateCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(generateCmd)
}

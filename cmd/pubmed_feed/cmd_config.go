package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/pubmed_feed/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "显示合并默认值和环境变量后的生效配置（密钥已隐藏）",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := masked(*cfg)
		data, err := yaml.Marshal(&c)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", config.ResolvePath(configPath))
		_, err = out.Write(data)
		return err
	},
}

func masked(c config.Config) config.Config {
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.PubMed.APIKey = mask(c.PubMed.APIKey)
	c.DB.Password = mask(c.DB.Password)
	if c.DB.DSN != "" {
		c.DB.DSN = "******"
	}
	c.Interests = append([]string(nil), c.Interests...)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "******"
	}
	return s[:4] + "******" + s[len(s)-4:]
}

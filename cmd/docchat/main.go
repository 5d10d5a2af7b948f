package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "docchat",
		Short: "Per-session PDF indexing and hybrid retrieval service",
	}
	root.AddCommand(serveCMD())
	if err := root.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

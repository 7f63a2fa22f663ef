package main

import "github.com/estacaoterapia/estacao_backend/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	"fmt"
	"net/http"
)

func main() {
	http.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Backend de Ordens</h1><p>userId=%s roles=%s</p>",
			r.Header.Get("X-User-Id"), r.Header.Get("X-User-Roles"))
		fmt.Println("Log: requisição admitida chegou em /api/v1/orders")
	})
	fmt.Println("Servidor rodando em http://localhost:8082")
	err := http.ListenAndServe(":8082", nil)
	if err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}

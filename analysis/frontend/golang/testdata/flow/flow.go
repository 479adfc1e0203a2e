package main

import "fmt"

func Handle(event map[string]string) (string, error) {
	out := ""
	for i := 0; i < 3; i++ {
		switch event["mode"] {
		case "a":
			out += "a"
			break
		case "b":
			continue
		default:
			out = event["x"]
		}
	}
	fmt.Println(out)
	return out, nil
}

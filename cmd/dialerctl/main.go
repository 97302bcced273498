package main

import "outbound-dialer/internal/ctl"

func main() {
	ctl.Main()
}

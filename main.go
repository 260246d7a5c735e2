package main

import "github.com/Marcosotoladev/DhermicaApp-sub000/cli"

// @title           Dhermica Clinic API
// @version         1.0
// @description     Booking API of the Dhermica aesthetic clinic.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @securityDefinitions.apikey  SessionToken
// @in                          header
// @name                        session-token
func main() {
	cli.Execute()
}

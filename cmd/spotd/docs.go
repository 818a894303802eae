package main

// General API documentation for swaggo. Run `swag init` to generate docs.
//
// @title           spotd API
// @version         1.0
// @description     HTTP API for live parking occupancy tracking and forecasting.
//
// @contact.name   spotd maintainers
// @contact.url    https://github.com/your-org/spotd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http

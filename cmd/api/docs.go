package main

// @title           Fatoora API
// @version         1.0
// @description     Invoicing API with ZATCA Phase 2 compliance: UBL 2.1 invoices, XAdES signatures and TLV QR codes

// @contact.name   API Support
// @contact.email  support@sahlsoft.sa

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description JWT authentication header using the Bearer scheme. Example: "Bearer {token}"

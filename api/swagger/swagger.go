package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus ID Validation API",
        "description": "Student ID validation portal: request review, QR gate passes and offense tracking",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login, token refresh and logout"},
        {"name": "Validation", "description": "Student validation requests and admin review"},
        {"name": "Scan", "description": "Gate-side QR verification and completion"},
        {"name": "Offenses", "description": "Handbook offense records"},
        {"name": "Settings", "description": "Validation period and semester administration"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke all refresh tokens for the caller",
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/validation/period/status": {
            "get": {
                "tags": ["Validation"],
                "summary": "Public validation period status",
                "responses": {
                    "200": {"description": "Period window and state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/validation/requests": {
            "post": {
                "tags": ["Validation"],
                "summary": "Submit or resubmit a validation request (student)",
                "responses": {
                    "201": {"description": "Request pending review"},
                    "403": {"description": "Period closed or active offenses"},
                    "409": {"description": "Already validated this semester"},
                    "429": {"description": "Submission rate limit"}
                }
            },
            "get": {
                "tags": ["Validation"],
                "summary": "List requests for review (admin/OSA)",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Paged requests", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/validation/requests/export": {
            "get": {
                "tags": ["Validation"],
                "summary": "Download the review table as CSV or PDF (admin/OSA)",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/validation/requests/me": {
            "get": {
                "tags": ["Validation"],
                "summary": "The caller's own request",
                "responses": {
                    "200": {"description": "Current request"},
                    "404": {"description": "No request on file"}
                }
            }
        },
        "/validation/requests/{studentNumber}/decision": {
            "post": {
                "tags": ["Validation"],
                "summary": "Accept or reject a pending request (admin/OSA)",
                "parameters": [
                    {"name": "studentNumber", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Decision applied; QR issued on accept"},
                    "409": {"description": "Request already reviewed"}
                }
            }
        },
        "/validation/requests/{studentNumber}/resend": {
            "post": {
                "tags": ["Validation"],
                "summary": "Reissue the gate pass for an accepted request (admin)",
                "parameters": [
                    {"name": "studentNumber", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "New QR issued, prior one invalidated"}
                }
            }
        },
        "/scan/verify": {
            "post": {
                "tags": ["Scan"],
                "summary": "Verify a scanned QR payload without consuming it",
                "responses": {
                    "200": {"description": "Student snapshot"},
                    "404": {"description": "Unknown credential"},
                    "409": {"description": "Credential already used"},
                    "410": {"description": "Credential expired"}
                }
            }
        },
        "/scan/complete": {
            "post": {
                "tags": ["Scan"],
                "summary": "Consume a credential and mark the student validated (OSA)",
                "responses": {
                    "200": {"description": "Outcome, including requirements-incomplete"}
                }
            }
        },
        "/scan/history/{studentNumber}": {
            "get": {
                "tags": ["Scan"],
                "summary": "Credential history for a student (admin/OSA)",
                "parameters": [
                    {"name": "studentNumber", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Issued credentials, newest first"}
                }
            }
        },
        "/offenses/catalog": {
            "get": {
                "tags": ["Offenses"],
                "summary": "Handbook offense catalog",
                "responses": {
                    "200": {"description": "Major and minor offenses with sanction ladders"}
                }
            }
        },
        "/offenses": {
            "post": {
                "tags": ["Offenses"],
                "summary": "File an offense against a student (OSA)",
                "responses": {
                    "201": {"description": "Offense recorded as active"}
                }
            }
        },
        "/offenses/{id}/resolve": {
            "post": {
                "tags": ["Offenses"],
                "summary": "Resolve an active offense (OSA)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Offense resolved"},
                    "409": {"description": "Offense is not active"}
                }
            }
        },
        "/offenses/{id}/reopen": {
            "post": {
                "tags": ["Offenses"],
                "summary": "Reopen a resolved offense (OSA)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Offense active again"}
                }
            }
        },
        "/offenses/student/{studentNumber}": {
            "get": {
                "tags": ["Offenses"],
                "summary": "Offenses recorded against a student",
                "parameters": [
                    {"name": "studentNumber", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Offense list"}
                }
            }
        },
        "/settings/period": {
            "get": {
                "tags": ["Settings"],
                "summary": "Current validation period window (admin)",
                "responses": {
                    "200": {"description": "Configured window"}
                }
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Set the validation period window (admin)",
                "responses": {
                    "204": {"description": "Window stored"}
                }
            }
        },
        "/settings/semester": {
            "get": {
                "tags": ["Settings"],
                "summary": "Current semester (admin)",
                "responses": {
                    "200": {"description": "Active school year and term"}
                }
            },
            "post": {
                "tags": ["Settings"],
                "summary": "Start a new semester, resetting validations (admin)",
                "responses": {
                    "201": {"description": "Semester opened"},
                    "409": {"description": "Semester already started"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

// Package docs holds the OpenAPI document served by gin-swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/movie-info": {
            "post": {
                "description": "Stores the record and returns it with its id. A missing id is generated; an existing id is replaced.\nSupports idempotent retries via the Idempotency-Key header.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["MovieInfo"],
                "summary": "Create a movie-info record",
                "operationId": "createMovieInfo",
                "parameters": [
                    {
                        "type": "string",
                        "example": "7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab",
                        "description": "Idempotency key for safe retries",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Record to store",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/domain.MovieInfo"}
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {"$ref": "#/definitions/domain.MovieInfo"},
                        "headers": {
                            "Idempotency-Replayed": {"type": "string", "description": "true when served from a previous request"}
                        }
                    },
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Idempotency-Key refers to a deleted record", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Too many requests", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/movie-infos": {
            "get": {
                "description": "Returns every record in storage order. With ` + "`" + `Accept: application/x-ndjson` + "`" + ` the records are streamed one JSON object per line.\nSupports a weak ETag via If-None-Match and may return 304.",
                "produces": ["application/json", "application/x-ndjson"],
                "tags": ["MovieInfo"],
                "summary": "List all movie-info records",
                "operationId": "listMovieInfos",
                "parameters": [
                    {
                        "type": "string",
                        "example": "W/\"movie-infos:3:1718409600000000000\"",
                        "description": "Return 304 if the ETag matches",
                        "name": "If-None-Match",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.MovieInfo"}},
                        "headers": {"ETag": {"type": "string", "description": "Weak ETag for the current collection"}}
                    },
                    "304": {"description": "Not Modified", "schema": {"type": "string"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/movie-infos/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["MovieInfo"],
                "summary": "Get a movie-info record",
                "operationId": "getMovieInfo",
                "parameters": [
                    {"type": "string", "example": "TDR", "description": "Record id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.MovieInfo"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Deleting an id that does not exist also returns 204.",
                "tags": ["MovieInfo"],
                "summary": "Delete a movie-info record",
                "operationId": "deleteMovieInfo",
                "parameters": [
                    {"type": "string", "example": "TDR", "description": "Record id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content", "schema": {"type": "string"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.MovieInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "TDR"},
                "title": {"type": "string", "example": "The Dark Knight Rises"},
                "year": {"type": "integer", "example": 2012},
                "cast": {"type": "array", "items": {"type": "string"}, "example": ["Christian Bale", "Michael Cane"]},
                "releaseDate": {"type": "string", "format": "date", "example": "2012-07-20"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "movie info not found"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Movie Info API",
	Description:      "CRUD over movie-info records plus /mono and /stream demo endpoints.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

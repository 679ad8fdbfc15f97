package routes

import (
	"chadserv/httpserver"
)

// FailureQueryHandler looks up the durable failure record for a chunk.
func FailureQueryHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		id, ok := req.Query["id"]
		if !ok {
			res.SetStatus(400, "Bad Request")
			return res.SetJSON(map[string]string{"error": "Missing chunk id"})
		}

		record, err := d.Failures.Get(id)
		if err != nil {
			return err
		}
		if record == nil {
			return res.SetJSON(map[string]string{"id": id, "status": "ok"})
		}
		return res.SetJSON(record)
	}
}

// FailureListHandler lists every durable failure record.
func FailureListHandler(d Deps) httpserver.Handler {
	return func(req *httpserver.Request, res *httpserver.Response) error {
		records, err := d.Failures.List()
		if err != nil {
			return err
		}
		return res.SetJSON(map[string]interface{}{
			"failures": records,
			"count":    len(records),
		})
	}
}

package api

import "net/http"

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

// dashboardHTML polls /api/status and renders the harvest counters.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>cruisecrawl</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: #1e293b; padding: 1.5rem 2rem; border-bottom: 1px solid #475569; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.5rem; color: #38bdf8; }
        .status { padding: 0.5rem 1rem; border-radius: 9999px; font-size: 0.875rem; font-weight: 600; }
        .status.running { background: #166534; color: #4ade80; }
        .status.stopping, .status.stopped { background: #991b1b; color: #fca5a5; }
        .status.idle { background: #854d0e; color: #fde047; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 1rem; padding: 2rem; }
        .card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.5rem; }
        .card .label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; margin-bottom: 0.5rem; }
        .card .value { font-size: 2rem; font-weight: 700; color: #f1f5f9; }
        .card.success .value { color: #4ade80; }
        .card.warning .value { color: #fbbf24; }
        .card.error .value { color: #f87171; }
        .footer { text-align: center; padding: 1rem; color: #475569; font-size: 0.75rem; }
    </style>
</head>
<body>
    <div class="header">
        <h1>cruisecrawl</h1>
        <span class="status idle" id="state">idle</span>
    </div>
    <div class="grid">
        <div class="card"><div class="label">Pages</div><div class="value" id="pages">0</div></div>
        <div class="card"><div class="label">Ships</div><div class="value" id="ships">0</div></div>
        <div class="card success"><div class="label">Voyages Stored</div><div class="value" id="voyages_stored">0</div></div>
        <div class="card"><div class="label">Voyages Skipped</div><div class="value" id="voyages_skipped">0</div></div>
        <div class="card error"><div class="label">Voyages Failed</div><div class="value" id="voyages_failed">0</div></div>
        <div class="card success"><div class="label">Rows Stored</div><div class="value" id="rows_stored">0</div></div>
        <div class="card"><div class="label">At Sea Rows</div><div class="value" id="at_sea_rows">0</div></div>
        <div class="card warning"><div class="label">Unparsed Fragments</div><div class="value" id="unparsed_fragments">0</div></div>
        <div class="card"><div class="label">Requests</div><div class="value" id="requests">0</div></div>
        <div class="card"><div class="label">Processed Keys</div><div class="value" id="processed">0</div></div>
        <div class="card"><div class="label">Elapsed</div><div class="value" id="elapsed">0s</div></div>
    </div>
    <div class="footer">Refreshes every 2s</div>
    <script>
        async function refresh() {
            try {
                const r = await fetch('/api/status');
                const d = await r.json();
                const st = document.getElementById('state');
                st.textContent = d.state;
                st.className = 'status ' + d.state;
                for (const [k, v] of Object.entries(d.stats || {})) {
                    const el = document.getElementById(k);
                    if (el) el.textContent = Number(v).toLocaleString();
                }
                document.getElementById('processed').textContent = Number(d.processed).toLocaleString();
                if (d.elapsed) document.getElementById('elapsed').textContent = d.elapsed;
            } catch (e) {}
        }
        setInterval(refresh, 2000);
        refresh();
    </script>
</body>
</html>`

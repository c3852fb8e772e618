package api

import "net/http"

// handleIndex serves the browser mirror: a single page that loads the
// snapshot and then follows the terminal's selection live over /events.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexPage))
}

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>maildeck</title>
<style>
  body { margin: 0; font: 14px/1.4 ui-monospace, monospace; background: #111; color: #ddd; }
  header { padding: 8px 12px; background: #222; display: flex; justify-content: space-between; }
  header .status { color: #8c8; }
  header .status.off { color: #c88; }
  main { display: flex; min-height: calc(100vh - 37px); }
  section { padding: 10px 12px; overflow: auto; }
  #folders { width: 22%; border-right: 1px solid #333; }
  #messages { width: 33%; border-right: 1px solid #333; }
  #content { flex: 1; white-space: pre-wrap; }
  .row { padding: 1px 4px; }
  .row.selected { background: #2a4a6a; }
  .row.unread { font-weight: bold; }
  .muted { color: #888; }
  h2 { margin: 0 0 8px; font-size: 13px; color: #888; text-transform: uppercase; }
  .hidden { display: none; }
</style>
</head>
<body>
<header>
  <span>maildeck &mdash; <span id="location" class="muted"></span></span>
  <span id="status" class="status off">connecting&hellip;</span>
</header>
<main>
  <section id="folders"><h2>Folders</h2><div id="folder-rows"></div></section>
  <section id="messages"><h2>Messages</h2><div id="message-rows"></div></section>
  <section id="content"><h2>Content</h2><div id="content-body" class="muted">nothing selected</div></section>
</main>
<script>
function esc(s) {
  return (s || "").replace(/[&<>]/g, function (c) {
    return { "&": "&amp;", "<": "&lt;", ">": "&gt;" }[c];
  });
}

function render(ev) {
  var sel = ev.selection || {};
  document.getElementById("location").textContent =
    (sel.folder_path || "(no folder)") + (sel.message_id ? " / " + sel.message_id : "");

  var folders = "";
  (ev.folders || []).forEach(function (f) {
    var cls = "row" + (f.path === sel.folder_path ? " selected" : "");
    var pad = "&nbsp;".repeat(f.depth * 2);
    var unread = f.unread > 0 ? " (" + f.unread + ")" : "";
    folders += '<div class="' + cls + '">' + pad + esc(f.name) + unread + "</div>";
  });
  document.getElementById("folder-rows").innerHTML = folders || '<div class="muted">empty store</div>';

  var messages = "";
  (ev.messages || []).forEach(function (m) {
    var cls = "row" + (m.id === sel.message_id ? " selected" : "") + (m.unread ? " unread" : "");
    var date = m.date ? m.date.slice(0, 10) : "";
    messages += '<div class="' + cls + '">' + date + "  " +
      esc(m.from || "(unknown)") + " &mdash; " + esc(m.subject) + "</div>";
  });
  document.getElementById("message-rows").innerHTML = messages || '<div class="muted">no folder selected</div>';

  var body = document.getElementById("content-body");
  if (ev.loading) {
    body.className = "muted";
    body.textContent = "loading…";
  } else if (ev.content_error) {
    body.className = "muted";
    body.textContent = ev.content_error;
  } else if (ev.content) {
    var c = ev.content;
    var head = "Subject: " + (c.subject || "") + "\nDate: " + (c.date || "") + "\n\n";
    var atts = (c.attachments || []).map(function (a) {
      return "\n[attachment] " + a.filename + " (" + a.content_type + ", " + a.size_bytes + " bytes)";
    }).join("");
    body.className = "";
    body.textContent = head + (c.body_text || "") + atts;
  } else {
    body.className = "muted";
    body.textContent = "nothing selected";
  }
}

function connect() {
  var status = document.getElementById("status");
  var es = new EventSource("/events");
  es.onopen = function () { status.textContent = "live"; status.className = "status"; };
  es.onerror = function () { status.textContent = "reconnecting…"; status.className = "status off"; };
  ["nav", "content"].forEach(function (kind) {
    es.addEventListener(kind, function (e) { render(JSON.parse(e.data)); });
  });
}

fetch("/api/state")
  .then(function (r) { return r.ok ? r.json() : null; })
  .then(function (ev) { if (ev) render(ev); })
  .catch(function () {})
  .then(connect);
</script>
</body>
</html>
`

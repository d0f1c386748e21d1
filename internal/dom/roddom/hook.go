package roddom

import (
	"encoding/json"
	"fmt"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
)

// HookConfig is serialized into the page hook.
type HookConfig struct {
	Owner       string `json:"owner"`
	OwnedAttr   string `json:"ownedAttr"`
	ActionAttr  string `json:"actionAttr"`
	ValueAttr   string `json:"valueAttr"`
	SearchInput string `json:"searchInput"`
	MaxBuffer   int    `json:"maxBuffer"`
}

func (c HookConfig) withDefaults() HookConfig {
	if c.OwnedAttr == "" {
		c.OwnedAttr = dom.OwnedAttr
	}
	if c.ActionAttr == "" {
		c.ActionAttr = dom.ActionAttr
	}
	if c.ValueAttr == "" {
		c.ValueAttr = dom.ValueAttr
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = 1000
	}
	return c
}

// hookScript returns the installer run on every new document. Shortcut
// keys are prevented in the page since the engine reacts asynchronously.
func hookScript(cfg HookConfig) (string, error) {
	raw, err := json.Marshal(cfg.withDefaults())
	if err != nil {
		return "", fmt.Errorf("roddom: encode hook config: %w", err)
	}
	return fmt.Sprintf(hookTemplate, raw), nil
}

const hookTemplate = `(() => {
  if (window.__overlay) return true;
  const cfg = %s;
  const refs = new Map();
  const ids = new WeakMap();
  const removed = new WeakSet();
  let seq = 0;
  let buf = [];

  const handle = (n) => {
    if (!n) return 0;
    let id = ids.get(n);
    if (!id) {
      id = ++seq;
      ids.set(n, id);
      refs.set(id, new WeakRef(n));
    }
    return id;
  };
  const node = (h) => {
    if (!h) return document;
    const ref = refs.get(h);
    const n = ref ? ref.deref() : null;
    if (!n) refs.delete(h);
    return n || null;
  };
  const owned = (n) => {
    for (let c = n; c; c = c.parentNode) {
      if (c.nodeType === 1 && c.hasAttribute(cfg.ownedAttr)) return true;
    }
    return false;
  };
  const push = (ev) => {
    if (buf.length < cfg.maxBuffer) buf.push(ev);
  };
  const path = (t) => {
    const out = [];
    for (let c = t; c && c.nodeType === 1; c = c.parentElement) {
      if (c.id) out.push(c.id);
    }
    return out;
  };
  const query = (root, sel, all) => {
    if (!root) return all ? [] : 0;
    try {
      return all ? Array.from(root.querySelectorAll(sel)).map(handle) : handle(root.querySelector(sel));
    } catch (_e) {
      return all ? [] : 0;
    }
  };

  new MutationObserver((records) => {
    let self = true;
    let count = 0;
    for (const r of records) {
      const n = r.addedNodes.length + r.removedNodes.length;
      count += n;
      if (owned(r.target)) continue;
      for (const a of r.addedNodes) if (!owned(a)) self = false;
      for (const d of r.removedNodes) if (!removed.has(d)) self = false;
    }
    if (count) push({ type: "mutation", self, nodes: count });
  }).observe(document, { childList: true, subtree: true });

  window.addEventListener("keydown", (e) => {
    const tag = (e.target && e.target.tagName) || "";
    const key = String(e.key || "");
    const lower = key.toLowerCase();
    const editable = tag === "INPUT" || tag === "TEXTAREA";
    if (key === "/" && !e.ctrlKey && !e.metaKey && !editable && cfg.searchInput && document.querySelector(cfg.searchInput)) e.preventDefault();
    if ((e.ctrlKey || e.metaKey) && lower === "k") e.preventDefault();
    if (e.ctrlKey && e.shiftKey && lower === "i") e.preventDefault();
    if (key !== "/" && key !== "Escape" && !e.ctrlKey && !e.metaKey && !e.altKey) return;
    push({ type: "key", key: { key, ctrl: e.ctrlKey, meta: e.metaKey, shift: e.shiftKey, alt: e.altKey, tag } });
  }, true);

  document.addEventListener("click", (e) => {
    const t = e.target;
    const ctl = t && t.closest ? t.closest("[" + cfg.actionAttr + "]") : null;
    const ev = { type: "click", path: path(t) };
    if (ctl) {
      ev.action = ctl.getAttribute(cfg.actionAttr) || "";
      ev.value = ctl.getAttribute(cfg.valueAttr) || "";
      if (ctl.tagName === "A" && ctl.getAttribute("href") === "#") e.preventDefault();
    }
    push(ev);
  }, true);

  const touch = (type) => (e) => {
    const list = type === "touchstart" ? e.touches : e.changedTouches;
    const p = list && list[0];
    if (!p) return;
    push({ type, x: p.clientX, y: p.clientY, path: path(e.target) });
  };
  document.addEventListener("touchstart", touch("touchstart"), { passive: true, capture: true });
  document.addEventListener("touchend", touch("touchend"), { passive: true, capture: true });
  window.addEventListener("hashchange", () => push({ type: "hashchange" }));

  const ops = {
    drain: () => { const out = buf; buf = []; return out; },
    q: (h, sel) => query(node(h), sel, false),
    qa: (h, sel) => query(node(h), sel, true),
    byId: (id) => handle(document.getElementById(id)),
    body: () => handle(document.body),
    create: (tag) => {
      const el = document.createElement(tag);
      el.setAttribute(cfg.ownedAttr, cfg.owner);
      return handle(el);
    },
    location: () => window.location.href + " " + window.location.hash,
    title: () => document.title || "",
    width: () => window.innerWidth || 0,
    navigate: (href) => { window.location.href = href; return true; },
    getItem: (k) => { try { return window.localStorage.getItem(k); } catch (_e) { return null; } },
    setItem: (k, v) => { try { window.localStorage.setItem(k, v); } catch (_e) {} return true; },
    el: (h, name, a, b) => {
      const n = node(h);
      if (!n || n === document) return null;
      switch (name) {
        case "id": return n.id || "";
        case "tag": return n.tagName || "";
        case "text": return n.textContent || "";
        case "attr": return n.hasAttribute(a) ? [n.getAttribute(a)] : [];
        case "setAttr": n.setAttribute(a, b); return true;
        case "removeAttr": n.removeAttribute(a); return true;
        case "hasClass": return n.classList.contains(a);
        case "toggleClass": n.classList.toggle(a, !!b); return true;
        case "append": { const c = node(a); if (c && c !== document && c !== n) n.appendChild(c); return true; }
        case "prepend": { const c = node(a); if (c && c !== document && c !== n) n.prepend(c); return true; }
        case "remove": if (n.parentNode) { removed.add(n); n.remove(); } return true;
        case "html": for (const c of Array.from(n.childNodes)) removed.add(c); n.innerHTML = a; return true;
        case "setText": for (const c of Array.from(n.childNodes)) removed.add(c); n.textContent = a; return true;
        case "focus": if (n.focus) n.focus(); return true;
        case "click": if (n.click) n.click(); return true;
      }
      return null;
    },
  };
  window.__overlay = { call: (name, args) => ops[name] ? ops[name](...(args || [])) : null };
  return true;
})()`
